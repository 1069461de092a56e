// Package postgres implements the profile store on top of a PostgreSQL
// profiles table, the layout used when the user profiles are owned by a
// relational backend. Only the Stripe customer column is ever written.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lysco/checkout-backend/db"
	"go.vocdoni.io/dvote/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultTimeout = 10 * time.Second

var _ db.ProfileStore = (*Storage)(nil)

// profileRow maps a row of the profiles table.
type profileRow struct {
	ID               string `gorm:"primaryKey"`
	StripeCustomerID *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (profileRow) TableName() string { return "profiles" }

// Storage is a profile store backed by PostgreSQL.
type Storage struct {
	db *gorm.DB
}

// New opens the connection described by dsn. When migrate is true, the
// profiles table is created or updated to the expected layout.
func New(dsn string, migrate bool) (*Storage, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is not defined")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to postgres: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("cannot get postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("cannot connect to postgres: %w", err)
	}
	if migrate {
		if err := gdb.AutoMigrate(&profileRow{}); err != nil {
			return nil, fmt.Errorf("profiles migration failed: %w", err)
		}
	}
	log.Infow("connected to postgres", "migrate", migrate)
	return &Storage{db: gdb}, nil
}

// SetStripeCustomerID updates the Stripe customer column of the profile
// identified by userID. Profiles are never created here, a missing row
// returns db.ErrNotFound.
func (s *Storage) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	if userID == "" || customerID == "" {
		return db.ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	res := s.db.WithContext(ctx).
		Model(&profileRow{}).
		Where("id = ?", userID).
		Update("stripe_customer_id", customerID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.ErrNotFound
	}
	return nil
}

// Profile returns the profile of the user or db.ErrNotFound.
func (s *Storage) Profile(ctx context.Context, userID string) (*db.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	var row profileRow
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, db.ErrNotFound
		}
		return nil, err
	}
	profile := &db.Profile{
		UserID:    row.ID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.StripeCustomerID != nil {
		profile.StripeCustomerID = *row.StripeCustomerID
	}
	return profile, nil
}

// Close closes the connection pool.
func (s *Storage) Close() {
	sqlDB, err := s.db.DB()
	if err != nil {
		log.Warn(err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn(err)
	}
}
