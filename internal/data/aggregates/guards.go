package aggregates

import (
	"strings"

	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CASGuard provides compare-and-set helpers for aggregate writes. The state
// machines here are one-way boolean flags, so the guards compare flag
// columns rather than version counters.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx), nil
	}
	if g.db != nil {
		return g.db.WithContext(dbc.Ctx), nil
	}
	return nil, ValidationError("missing db transaction context")
}

// UpdateByFlag updates a row only while a boolean column still holds the
// expected value. Sticky transitions (is_completed, certificate_issued) rely
// on this so concurrent writers cannot double-apply them; the loser sees
// false, not a corrupted row.
func (g CASGuard) UpdateByFlag(dbc dbctx.Context, table string, id uuid.UUID, column string, expected bool, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	column = strings.TrimSpace(column)
	if table == "" || column == "" || id == uuid.Nil {
		return false, ValidationError("table, column, and id are required for UpdateByFlag")
	}
	res := db.Table(table).
		Where("id = ? AND "+column+" = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateGuarded updates a row only while every guard column still holds its
// expected value. Used where a single flag is not enough, e.g. releasing a
// certificate claim must also prove the URL was never finalized.
func (g CASGuard) UpdateGuarded(dbc dbctx.Context, table string, id uuid.UUID, guard map[string]any, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	if table == "" || id == uuid.Nil {
		return false, ValidationError("table and id are required for UpdateGuarded")
	}
	if len(guard) == 0 {
		return false, ValidationError("guard must not be empty")
	}
	res := db.Table(table).
		Where("id = ?", id).
		Where(guard).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequireCASSuccess converts a failed compare-and-set into a typed conflict error.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}
