package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// SetStripeCustomerID method writes the Stripe customer id on the profile of
// the user. Profiles are owned by the account system and never created here,
// so a missing profile returns ErrNotFound. Writing the same id again only
// refreshes the update time.
func (ms *MongoStorage) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	if userID == "" || customerID == "" {
		return ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"stripeCustomerId": customerID, "updatedAt": now}}
	res, err := ms.profiles.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Profile method returns the profile of the user. If it doesn't exist, it
// returns ErrNotFound.
func (ms *MongoStorage) Profile(ctx context.Context, userID string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	profile := &Profile{}
	if err := ms.profiles.FindOne(ctx, bson.M{"_id": userID}).Decode(profile); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return profile, nil
}
