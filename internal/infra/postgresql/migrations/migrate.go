package migrations

import (
	"github.com/FriendsOfREDAXO/mail-tools/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_retry_records",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.RetryRecordModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_retry_records_next_attempt ON retry_records (next_attempt_at) WHERE next_attempt_at IS NOT NULL`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.RetryRecordModel{})
			},
		},
		{
			ID: "000002_create_bounce_records",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.BounceRecordModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.BounceRecordModel{})
			},
		},
		{
			ID: "000003_create_reported_failures",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.ReportedFailureModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.ReportedFailureModel{})
			},
		},
	})

	return m.Migrate()
}
