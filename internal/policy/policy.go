// Package policy holds the declarative role table that decides what each
// caller may do: which actions, which book statuses, whose borrow history.
package policy

import (
	"bookshelf/pkg/model"
	"fmt"
	"strings"
)

type Permission string

const (
	Borrow           Permission = "borrow"
	Return           Permission = "return"
	UpdateBookStatus Permission = "update_book_status"
	ApproveBorrow    Permission = "approve_borrow"
	ViewAllHistory   Permission = "view_all_history"
	CreateBook       Permission = "create_book"
	DeleteBook       Permission = "delete_book"
	ManageUsers      Permission = "manage_users"
)

type HistoryScope int

const (
	HistoryOwn HistoryScope = iota
	HistoryAll
)

type Rule struct {
	Permissions      []Permission
	SettableStatuses []model.BookStatus
	History          HistoryScope
}

type Policy struct {
	rules map[model.Role]Rule
}

// Default is the library's role table.
func Default() *Policy {
	staff := []Permission{Borrow, Return, UpdateBookStatus, ApproveBorrow, ViewAllHistory}
	return New(map[model.Role]Rule{
		model.RoleNormalUser: {
			Permissions: []Permission{Borrow, Return},
			History:     HistoryOwn,
		},
		model.RoleLibrarian: {
			Permissions:      staff,
			SettableStatuses: []model.BookStatus{model.BookAvailable, model.BookBorrowed, model.BookDamaged},
			History:          HistoryAll,
		},
		model.RoleAdmin: {
			Permissions:      append(append([]Permission{}, staff...), CreateBook, DeleteBook, ManageUsers),
			SettableStatuses: model.BookStatuses,
			History:          HistoryAll,
		},
	})
}

func New(rules map[model.Role]Rule) *Policy {
	return &Policy{rules: rules}
}

func (p *Policy) Allows(role model.Role, perm Permission) bool {
	rule, ok := p.rules[role]
	if !ok {
		return false
	}
	for _, granted := range rule.Permissions {
		if granted == perm {
			return true
		}
	}
	return false
}

func (p *Policy) CanSetStatus(role model.Role, status model.BookStatus) bool {
	rule, ok := p.rules[role]
	if !ok {
		return false
	}
	for _, allowed := range rule.SettableStatuses {
		if allowed == status {
			return true
		}
	}
	return false
}

// SettableStatuses lists the statuses role may assign, in table order.
func (p *Policy) SettableStatuses(role model.Role) []model.BookStatus {
	return p.rules[role].SettableStatuses
}

// StatusDeniedMessage explains a rejected status change to the caller.
func (p *Policy) StatusDeniedMessage(role model.Role) string {
	statuses := p.SettableStatuses(role)
	if len(statuses) == 0 {
		return fmt.Sprintf("Role %s cannot update book status", role)
	}
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	if len(names) == 1 {
		return fmt.Sprintf("%s can only update status to %s", roleTitle(role), names[0])
	}
	return fmt.Sprintf("%s can only update status to %s, or %s",
		roleTitle(role), strings.Join(names[:len(names)-1], ", "), names[len(names)-1])
}

// HistoryUserID resolves which user's history caller may read. Callers limited
// to their own records always get their own id back, whatever they asked for.
func (p *Policy) HistoryUserID(caller model.Identity, requested string) string {
	rule, ok := p.rules[caller.Role]
	if !ok || rule.History == HistoryOwn {
		return caller.UserID
	}
	return requested
}

func roleTitle(role model.Role) string {
	s := strings.ReplaceAll(string(role), "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
