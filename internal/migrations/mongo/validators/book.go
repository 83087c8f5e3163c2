package validators

import "go.mongodb.org/mongo-driver/bson"

var BookValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"title",
			"author",
			"isbn",
			"category",
			"page_count",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},

			"author": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 120,
			},

			"isbn": bson.M{
				"bsonType":  "string",
				"minLength": 10,
				"maxLength": 17,
			},

			"category": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 60,
			},

			"page_count": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"published_year": bson.M{
				"bsonType": []string{"int", "long"},
			},

			"status": bson.M{
				"enum": []string{"available", "borrowed", "damaged", "importing", "lost"},
			},

			"borrowed_by": bson.M{"bsonType": "string"},
			"borrowed_at": bson.M{"bsonType": "date"},
			"due_date":    bson.M{"bsonType": "date"},
			"created_at":  bson.M{"bsonType": "date"},
			"updated_at":  bson.M{"bsonType": "date"},
		},
	},
}
