package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-pos/internal/repo"
)

// PgTx runs inventory work inside one Postgres transaction.
type PgTx struct {
	Pool *pgxpool.Pool
}

// InTx binds the repositories to a transaction and commits on success.
func (p PgTx) InTx(ctx context.Context, fn func(Stores) error) error {
	if p.Pool == nil {
		return errors.New("inventory: pool not configured")
	}
	tx, err := p.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	err = fn(Stores{
		Products:  repo.Products{DB: tx},
		Movements: repo.Movements{DB: tx},
	})
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
