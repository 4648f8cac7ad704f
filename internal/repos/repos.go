package repos

import (
	"errors"

	"gorm.io/gorm"

	apperrors "github.com/gramlytics/gramlytics-backend/internal/pkg/errors"
)

// Outcome reports what an upsert did to the row behind the natural key.
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
	OutcomeNone     Outcome = ""
)

// BatchOutcome aggregates per-record results of an UpsertBatch.
type BatchOutcome struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

func (b *BatchOutcome) add(o Outcome) {
	switch o {
	case OutcomeInserted:
		b.Inserted++
	case OutcomeUpdated:
		b.Updated++
	}
}

func (b *BatchOutcome) Merge(other BatchOutcome) {
	b.Inserted += other.Inserted
	b.Updated += other.Updated
	b.Skipped += other.Skipped
	b.Failed += other.Failed
}

func useDB(tx, db *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

func persistErr(op string, err error) error {
	return &apperrors.PersistenceError{Op: op, Err: err}
}

// reject classifies a per-record upsert rejection: malformed records are
// skipped, dangling references (and anything else) count as failed.
func (b *BatchOutcome) reject(err error) {
	var ve *apperrors.ValidationError
	if errors.As(err, &ve) {
		b.Skipped++
		return
	}
	b.Failed++
}
