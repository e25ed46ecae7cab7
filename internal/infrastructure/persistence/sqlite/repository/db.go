// Package repository implements the ports repositories on gorm/sqlite.
// Every method resolves its *gorm.DB from the context first, so calls
// made inside a unit of work share that transaction.
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

func dbFromContext(ctx context.Context, fallback *gorm.DB) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return fallback.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}
