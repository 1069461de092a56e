// Package db implements the profile store of the service: the record that
// links an internal user id with its Stripe customer id. The MongoDB
// implementation lives in this package, the PostgreSQL one in db/postgres.
package db

import (
	"context"
	"time"
)

const defaultTimeout = 10 * time.Second

// Profile is the profile of an internal user as seen by the checkout.
type Profile struct {
	UserID           string    `json:"userId" bson:"_id"`
	StripeCustomerID string    `json:"stripeCustomerId" bson:"stripeCustomerId"`
	CreatedAt        time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ProfileStore persists the link between internal users and gateway
// customers.
type ProfileStore interface {
	// SetStripeCustomerID writes the Stripe customer id on an existing
	// profile of the user. It never creates the profile and returns
	// ErrNotFound when there is none.
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
	// Profile returns the profile of the user or ErrNotFound.
	Profile(ctx context.Context, userID string) (*Profile, error)
	Close()
}
