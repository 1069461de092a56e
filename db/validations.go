package db

import "go.mongodb.org/mongo-driver/bson"

var collectionsValidators = map[string]bson.M{
	"profiles": profilesCollectionValidator,
}

var profilesCollectionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType":    "string",
				"description": "internal user id, must be a non empty string",
				"minLength":   1,
			},
			"stripeCustomerId": bson.M{
				"bsonType":    "string",
				"description": "stripe customer id, must start with cus_",
				"pattern":     "^cus_",
			},
		},
	},
}
