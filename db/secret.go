package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Secret is one encrypted key/value entry of the credential store.
type Secret struct {
	Name      string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

// Codec seals values before they reach the backend and opens them on the way back.
type Codec interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// SecretStore is a GORM-backed credential store. Values are sealed by codec,
// so the SQLite file never holds a token in the clear.
// Use constructor NewSecretStore to obtain an instance.
type SecretStore struct {
	db    *gorm.DB
	codec Codec
}

// NewSecretStore creates a SecretStore. Accepts *gorm.DB to avoid global access.
func NewSecretStore(db *gorm.DB, codec Codec) *SecretStore {
	return &SecretStore{db: db, codec: codec}
}

// Get returns the stored value for key, or "" if there is none.
func (s *SecretStore) Get(ctx context.Context, key string) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database connection is not initialized")
	}

	var secret Secret
	err := s.db.WithContext(ctx).First(&secret, "name = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to read secret")
		return "", err
	}

	value, err := s.codec.Open(secret.Value)
	if err != nil {
		return "", fmt.Errorf("failed to open secret %q: %w", key, err)
	}
	return value, nil
}

// Set inserts or replaces the value stored under key.
func (s *SecretStore) Set(ctx context.Context, key, value string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	sealed, err := s.codec.Seal(value)
	if err != nil {
		return fmt.Errorf("failed to seal secret %q: %w", key, err)
	}

	secret := Secret{Name: key, Value: sealed, UpdatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&secret).Error; err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to upsert secret")
		return err
	}
	return nil
}

// Delete removes key. Removing an absent key is not an error.
func (s *SecretStore) Delete(ctx context.Context, key string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	if err := s.db.WithContext(ctx).Where("name = ?", key).Delete(&Secret{}).Error; err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to delete secret")
		return err
	}
	return nil
}
