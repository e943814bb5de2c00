package repository

import (
	"context"

	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportedFailureRepo tracks which fingerprints already appeared in an
// operator report. Markers are append-only.
type ReportedFailureRepo interface {
	MarkReported(ctx context.Context, failures []domain.ReportedFailure) error
	// ReportedFingerprints returns all marked fingerprints as a set.
	ReportedFingerprints(ctx context.Context) (map[string]struct{}, error)
}

type GormReportedFailureRepo struct {
	db *gorm.DB
}

func NewGormReportedFailureRepo(db *gorm.DB) *GormReportedFailureRepo {
	return &GormReportedFailureRepo{db: db}
}

func (r *GormReportedFailureRepo) MarkReported(ctx context.Context, failures []domain.ReportedFailure) error {
	if len(failures) == 0 {
		return nil
	}

	models := make([]ReportedFailureModel, 0, len(failures))
	for i := range failures {
		models = append(models, *reportedModelFromDomain(&failures[i]))
	}

	// A marker already present means the fingerprint was reported by an
	// earlier run; keep the original marker.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fingerprint"}},
			DoNothing: true,
		}).
		CreateInBatches(&models, 100).Error
}

func (r *GormReportedFailureRepo) ReportedFingerprints(ctx context.Context) (map[string]struct{}, error) {
	var fingerprints []string
	err := r.db.WithContext(ctx).
		Model(&ReportedFailureModel{}).
		Pluck("fingerprint", &fingerprints).Error
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(fingerprints))
	for _, fp := range fingerprints {
		set[fp] = struct{}{}
	}
	return set, nil
}
