package repository

import (
	"context"
	"errors"
	"fmt"

	"carwash-payments/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type pgxTransactor struct {
	db   database.PgxIface
	base *zap.Logger
	log  *zap.Logger
}

func (t *pgxTransactor) WithinTx(ctx context.Context, fn func(tx *Repository) error) (err error) {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		t.log.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("begin transaction: %w", err)
	}

	// rollback must still reach the server when the request context is gone
	rollbackCtx := context.WithoutCancel(ctx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(rollbackCtx)
			panic(p)
		}
	}()

	if err := fn(newRepository(tx, t.base)); err != nil {
		if rbErr := tx.Rollback(rollbackCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			t.log.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		t.log.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
