// Package seed ensures bootstrap rows exist at startup. Migrations insert
// the same rows on postgres; this covers deployments that rely on
// AutoMigrate instead.
package seed

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	ledgerdomain "github.com/counselhub/counselhub/internal/ledger/domain"
)

// EnsureAnonymizedAccount reserves the sentinel account that order
// anonymization re-points payers to.
func EnsureAnonymizedAccount(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sentinel := ledgerdomain.Account{
			ID:          ledgerdomain.AnonymizedPayerID,
			Kind:        ledgerdomain.AccountKindSentinel,
			DisplayName: "anonymized",
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&sentinel).Error
	})
}
