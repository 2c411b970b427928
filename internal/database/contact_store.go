package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"contactgate/internal/domain"
	"contactgate/internal/metrics"
)

// DefaultListLimit caps the admin listing.
const DefaultListLimit = 100

// ContactStore persists contact records with gorm.
type ContactStore struct {
	db *gorm.DB
}

// NewContactStore creates a ContactStore
func NewContactStore(db *gorm.DB) *ContactStore {
	return &ContactStore{db: db}
}

// Create inserts rec as pending and fills in its id and created_at.
func (s *ContactStore) Create(ctx context.Context, rec *domain.ContactRecord) error {
	start := time.Now()
	err := s.db.WithContext(ctx).Create(rec).Error
	metrics.RecordDBQuery("contact_create", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}
	return nil
}

// MarkSent records that both emails were attempted.
func (s *ContactStore) MarkSent(ctx context.Context, id uint) error {
	start := time.Now()
	res := s.db.WithContext(ctx).
		Model(&domain.ContactRecord{}).
		Where("id = ?", id).
		Update("status", domain.StatusSent)
	metrics.RecordDBQuery("contact_mark_sent", time.Since(start), res.Error)
	if res.Error != nil {
		return fmt.Errorf("failed to update contact status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("contact %d not found", id)
	}
	return nil
}

// ListRecent returns the newest records first.
func (s *ContactStore) ListRecent(ctx context.Context, limit int) ([]domain.ContactRecord, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	start := time.Now()
	var records []domain.ContactRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	metrics.RecordDBQuery("contact_list", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return records, nil
}

// Ping checks database connectivity for the health endpoint.
func (s *ContactStore) Ping(ctx context.Context) error {
	return Ping(ctx, s.db)
}
