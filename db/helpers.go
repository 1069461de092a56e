package db

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.vocdoni.io/dvote/log"
)

// initCollections creates the collections in the MongoDB database if they
// don't exist, applying the registered validator of every collection.
func (ms *MongoStorage) initCollections(database string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	currentCollections, err := ms.collectionNames(ctx, database)
	if err != nil {
		return err
	}
	getCollection := func(name string) (*mongo.Collection, error) {
		validator, hasValidator := collectionsValidators[name]
		if slices.Contains(currentCollections, name) {
			if hasValidator {
				err := ms.client.Database(database).RunCommand(ctx, bson.D{
					{Key: "collMod", Value: name},
					{Key: "validator", Value: validator},
				}).Err()
				if err != nil {
					return nil, fmt.Errorf("failed to update collection validator: %w", err)
				}
			}
		} else {
			opts := options.CreateCollection()
			if hasValidator {
				opts = opts.SetValidator(validator).SetValidationLevel("strict").SetValidationAction("error")
			}
			if err := ms.client.Database(database).CreateCollection(ctx, name, opts); err != nil {
				return nil, err
			}
		}
		return ms.client.Database(database).Collection(name), nil
	}
	if ms.profiles, err = getCollection("profiles"); err != nil {
		return err
	}
	return nil
}

// collectionNames returns the names of the collections in the given database.
func (ms *MongoStorage) collectionNames(ctx context.Context, database string) ([]string, error) {
	cursor, err := ms.client.Database(database).ListCollections(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.Warnw("failed to close collections cursor", "error", err)
		}
	}()
	var collections []struct {
		Name string `bson:"name"`
	}
	if err := cursor.All(ctx, &collections); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(collections))
	for _, col := range collections {
		names = append(names, col.Name)
	}
	return names, nil
}

// createIndexes creates the indexes for the collections in the MongoDB
// database. Add more indexes here as needed.
func (ms *MongoStorage) createIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	customerIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "stripeCustomerId", Value: 1}},
		Options: options.Index().SetSparse(true),
	}
	if _, err := ms.profiles.Indexes().CreateOne(ctx, customerIndex); err != nil {
		return fmt.Errorf("failed to create index on stripeCustomerId for profiles: %w", err)
	}
	return nil
}
