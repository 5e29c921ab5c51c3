// Package repo holds the handle shared by the gorm repositories.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base carries the connection a repository queries through. Embedding
// repositories add WithTx by wrapping Rebind.
type Base struct {
	conn *gorm.DB
}

func NewBase(conn *gorm.DB) Base { return Base{conn: conn} }

// DB returns the handle scoped to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.conn
	}
	return b.conn.WithContext(ctx)
}

// Rebind points the copy at tx. A nil tx is ignored so callers can pass an
// optional transaction straight through.
func (b Base) Rebind(tx *gorm.DB) Base {
	if tx != nil {
		b.conn = tx
	}
	return b
}

// First loads the first T matching conds. gorm.ErrRecordNotFound is returned
// unchanged for callers to map.
func First[T any](q *gorm.DB, conds ...any) (*T, error) {
	var row T
	if err := q.First(&row, conds...).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
