package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/loopwork-studio/agency-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NumberSequenceRepository handles database operations for number sequences.
// Values are handed out by the database itself so concurrent callers never
// observe the same number, and a consumed value is never handed out again.
type NumberSequenceRepository struct {
	db *gorm.DB
}

// NewNumberSequenceRepository creates a new NumberSequenceRepository
func NewNumberSequenceRepository(db *gorm.DB) *NumberSequenceRepository {
	return &NumberSequenceRepository{db: db}
}

// NextValue atomically increments the named sequence and returns the new value.
// A missing sequence is created at 1 by the same statement.
func (r *NumberSequenceRepository) NextValue(ctx context.Context, name string) (int64, error) {
	var next int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		seq := domain.NumberSequence{Name: name, LastValue: 1, UpdatedAt: now}

		// INSERT ... ON CONFLICT (name) DO UPDATE takes the row lock, so the
		// increment and the read below are serialized per sequence.
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"last_value": gorm.Expr("number_sequences.last_value + 1"),
				"updated_at": now,
			}),
		}).Create(&seq).Error
		if err != nil {
			return fmt.Errorf("failed to increment number sequence: %w", err)
		}

		if err := tx.Model(&domain.NumberSequence{}).
			Where("name = ?", name).
			Select("last_value").
			Scan(&next).Error; err != nil {
			return fmt.Errorf("failed to read number sequence: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return next, nil
}
