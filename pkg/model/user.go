package model

import "time"

type Role string

const (
	RoleNormalUser Role = "normal_user"
	RoleLibrarian  Role = "librarian"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleNormalUser || r == RoleLibrarian || r == RoleAdmin
}

// Staff roles carry an employment status.
func (r Role) Staff() bool {
	return r == RoleLibrarian || r == RoleAdmin
}

type EmploymentStatus string

const (
	Employed   EmploymentStatus = "employed"
	Unemployed EmploymentStatus = "unemployed"
	OnVacation EmploymentStatus = "vacation"
)

func (s EmploymentStatus) Valid() bool {
	return s == Employed || s == Unemployed || s == OnVacation
}

type User struct {
	ID               string           `json:"id,omitempty" bson:"_id,omitempty"`
	Username         string           `json:"username" bson:"username"`
	Email            string           `json:"email" bson:"email"`
	PasswordHash     string           `json:"-" bson:"password_hash"`
	FullName         string           `json:"full_name" bson:"full_name"`
	Role             Role             `json:"role" bson:"role"`
	EmploymentStatus EmploymentStatus `json:"employment_status,omitempty" bson:"employment_status,omitempty"`
	CreatedAt        time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" bson:"updated_at"`
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=30,alphanum"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	FullName string `json:"full_name" validate:"required,min=1,max=120"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

type RoleUpdate struct {
	Role Role `json:"role" validate:"required,oneof=normal_user librarian admin"`
}

type EmploymentStatusUpdate struct {
	EmploymentStatus EmploymentStatus `json:"employment_status" validate:"required,oneof=employed unemployed vacation"`
}

type UserFilter struct {
	Role             Role
	EmploymentStatus EmploymentStatus
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID string
	Role   Role
}

// Session is an issued bearer token. The token itself is the document key.
type Session struct {
	Token     string    `json:"-" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Role      Role      `json:"role" bson:"role"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
