package postgres

import (
	"context"
	"errors"

	"github.com/lib/pq"
	"github.com/yoockh/convopilot/internal/utils"
	"gorm.io/gorm"
)

type txKey struct{}

// Transactor runs a function inside one database transaction. Repositories
// called with the context passed to fn take part in that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

// WithinTx commits when fn returns nil and rolls back on error or panic.
// Nested calls reuse the outer transaction.
func (t *gormTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction bound to ctx, or db.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}

// translate maps driver errors onto the repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return utils.ErrConflict
	}
	// lib/pq errors are not covered by gorm's translator
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return utils.ErrConflict
	}
	return err
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
