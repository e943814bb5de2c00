package repository

import (
	"time"

	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
)

// RetryRecordModel is the persistence model for the retry_records table.
type RetryRecordModel struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	Fingerprint   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_retry_records_fingerprint"`
	AttemptCount  int    `gorm:"not null;default:0"`
	LastAttemptAt *time.Time
	NextAttemptAt *time.Time
	LastSucceeded bool `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (RetryRecordModel) TableName() string { return "retry_records" }

// BounceRecordModel is the persistence model for the bounce_records table.
type BounceRecordModel struct {
	ID          uint              `gorm:"primaryKey;autoIncrement"`
	Email       string            `gorm:"type:varchar(255);not null;uniqueIndex:idx_bounce_records_email"`
	BounceType  domain.BounceType `gorm:"type:varchar(10);not null"`
	LastMessage string            `gorm:"type:text"`
	Count       int               `gorm:"not null;default:1"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (BounceRecordModel) TableName() string { return "bounce_records" }

// ReportedFailureModel is the persistence model for the reported_failures table.
type ReportedFailureModel struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Fingerprint  string `gorm:"type:varchar(64);not null;uniqueIndex:idx_reported_failures_fingerprint"`
	Recipient    string `gorm:"type:varchar(255)"`
	Subject      string `gorm:"type:varchar(255)"`
	ErrorMessage string `gorm:"type:text"`
	LogTimestamp time.Time
	ReportedAt   time.Time
}

func (ReportedFailureModel) TableName() string { return "reported_failures" }

func retryModelFromDomain(r *domain.RetryRecord) *RetryRecordModel {
	if r == nil {
		return nil
	}
	return &RetryRecordModel{
		Fingerprint:   r.Fingerprint,
		AttemptCount:  r.AttemptCount,
		LastAttemptAt: r.LastAttemptAt,
		NextAttemptAt: r.NextAttemptAt,
		LastSucceeded: r.LastSucceeded,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func retryModelToDomain(m *RetryRecordModel) *domain.RetryRecord {
	if m == nil {
		return nil
	}
	return &domain.RetryRecord{
		Fingerprint:   m.Fingerprint,
		AttemptCount:  m.AttemptCount,
		LastAttemptAt: m.LastAttemptAt,
		NextAttemptAt: m.NextAttemptAt,
		LastSucceeded: m.LastSucceeded,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func bounceModelToDomain(m *BounceRecordModel) *domain.BounceRecord {
	if m == nil {
		return nil
	}
	return &domain.BounceRecord{
		Email:       m.Email,
		BounceType:  m.BounceType,
		LastMessage: m.LastMessage,
		Count:       m.Count,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func reportedModelFromDomain(r *domain.ReportedFailure) *ReportedFailureModel {
	if r == nil {
		return nil
	}
	return &ReportedFailureModel{
		Fingerprint:  r.Fingerprint,
		Recipient:    r.Recipient,
		Subject:      r.Subject,
		ErrorMessage: r.ErrorMessage,
		LogTimestamp: r.LogTimestamp,
		ReportedAt:   r.ReportedAt,
	}
}
