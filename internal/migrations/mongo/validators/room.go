package validators

import "go.mongodb.org/mongo-driver/bson"

var RoomValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"identifier",
			"places",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"organization_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 20,
			},

			"identifier": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 20,
			},

			"level": bson.M{
				"bsonType": "int",
				"minimum":  0,
				"maximum":  10,
			},

			"availability": bson.M{
				"bsonType": []string{"bool", "null"},
			},

			"places": bson.M{
				"bsonType": "object",
				"additionalProperties": bson.M{
					"bsonType": "int",
					"minimum":  0,
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
