package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RetryLedger stores per-fingerprint retry state.
type RetryLedger interface {
	// Get returns the record for a fingerprint. Absence is not an error: a
	// zero record (no attempts, immediately eligible) is returned instead.
	Get(ctx context.Context, fingerprint string) (domain.RetryRecord, error)
	// Upsert atomically creates or replaces the record keyed by fingerprint.
	Upsert(ctx context.Context, record domain.RetryRecord) error
}

type GormRetryLedger struct {
	db *gorm.DB
}

func NewGormRetryLedger(db *gorm.DB) *GormRetryLedger {
	return &GormRetryLedger{db: db}
}

func (r *GormRetryLedger) Get(ctx context.Context, fingerprint string) (domain.RetryRecord, error) {
	var model RetryRecordModel
	err := r.db.WithContext(ctx).First(&model, "fingerprint = ?", fingerprint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.RetryRecord{Fingerprint: fingerprint}, nil
	}
	if err != nil {
		return domain.RetryRecord{}, err
	}
	return *retryModelToDomain(&model), nil
}

func (r *GormRetryLedger) Upsert(ctx context.Context, record domain.RetryRecord) error {
	if strings.TrimSpace(record.Fingerprint) == "" {
		return fmt.Errorf("%w: fingerprint is required", domain.ErrValidation)
	}

	model := retryModelFromDomain(&record)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "fingerprint"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"attempt_count",
				"last_attempt_at",
				"next_attempt_at",
				"last_succeeded",
				"updated_at",
			}),
		}).
		Create(model).Error
}
