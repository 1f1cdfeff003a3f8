package checkout

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-pos/internal/repo"
)

// PgTx runs settlement work inside one Postgres transaction.
type PgTx struct {
	Pool *pgxpool.Pool
}

// InTx begins a transaction, binds every repository to it, and commits only
// when fn succeeds.
func (p PgTx) InTx(ctx context.Context, fn func(Stores) error) error {
	if p.Pool == nil {
		return errors.New("checkout: pool not configured")
	}
	tx, err := p.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	err = fn(Stores{
		Carts:       repo.Carts{DB: tx},
		Products:    repo.Products{DB: tx},
		Settlements: repo.Settlements{DB: tx},
		Movements:   repo.Movements{DB: tx},
		Customers:   repo.Customers{DB: tx},
		Discounts:   repo.Discounts{DB: tx},
		Shifts:      repo.Shifts{DB: tx},
	})
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
