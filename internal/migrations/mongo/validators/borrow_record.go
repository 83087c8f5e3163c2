package validators

import "go.mongodb.org/mongo-driver/bson"

var BorrowRecordValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"book_id",
			"user_id",
			"borrowed_at",
			"due_date",
			"status",
			"late_fee",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"book_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"borrowed_at": bson.M{"bsonType": "date"},
			"due_date":    bson.M{"bsonType": "date"},
			"returned_at": bson.M{"bsonType": "date"},

			"status": bson.M{
				"enum": []string{"pending", "approved", "active", "returned", "overdue"},
			},

			"approved_by": bson.M{"bsonType": "string"},

			"condition": bson.M{
				"enum": []string{"good", "damaged"},
			},

			"late_fee": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"notes": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}
