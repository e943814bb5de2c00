package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BounceRegistry aggregates delivery-status notifications per address.
type BounceRegistry interface {
	// Record upserts a bounce sighting: first sighting creates the record
	// with count 1, every further sighting increments the count and replaces
	// the stored message.
	Record(ctx context.Context, email string, bounceType domain.BounceType, message string) error
	GetByEmail(ctx context.Context, email string) (*domain.BounceRecord, error)
	List(ctx context.Context, limit, offset int) ([]domain.BounceRecord, int64, error)
}

type GormBounceRegistry struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormBounceRegistry(db *gorm.DB) *GormBounceRegistry {
	return &GormBounceRegistry{db: db, now: time.Now}
}

func (r *GormBounceRegistry) Record(ctx context.Context, email string, bounceType domain.BounceType, message string) error {
	canonical := domain.CanonicalEmail(email)
	if canonical == "" {
		return fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	if !bounceType.IsValid() {
		return fmt.Errorf("%w: invalid bounce type %q", domain.ErrValidation, bounceType)
	}

	now := r.now().UTC()
	model := &BounceRecordModel{
		Email:       canonical,
		BounceType:  bounceType,
		LastMessage: domain.TruncateBounceMessage(message),
		Count:       1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "email"}},
			DoUpdates: clause.Assignments(map[string]any{
				"count":        gorm.Expr("bounce_records.count + 1"),
				"last_message": model.LastMessage,
				"bounce_type":  model.BounceType,
				"updated_at":   now,
			}),
		}).
		Create(model).Error
}

func (r *GormBounceRegistry) GetByEmail(ctx context.Context, email string) (*domain.BounceRecord, error) {
	var model BounceRecordModel
	err := r.db.WithContext(ctx).First(&model, "email = ?", domain.CanonicalEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return bounceModelToDomain(&model), nil
}

func (r *GormBounceRegistry) List(ctx context.Context, limit, offset int) ([]domain.BounceRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&BounceRecordModel{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit < 1 {
		limit = 50
	}
	limit = min(limit, 500)
	if offset < 0 {
		offset = 0
	}

	var models []BounceRecordModel
	err := query.
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	records := make([]domain.BounceRecord, 0, len(models))
	for i := range models {
		records = append(records, *bounceModelToDomain(&models[i]))
	}

	return records, total, nil
}
