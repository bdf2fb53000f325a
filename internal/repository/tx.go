package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Tx - транзакция поверх DBTX. Узкий срез pgx.Tx, достаточный сервисам.
type Tx interface {
	DBTX
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxBeginner открывает транзакции. Реализуется пулом pgx, в тестах - моком.
type TxBeginner interface {
	Begin(ctx context.Context) (Tx, error)
}

type poolTxBeginner struct {
	pool *pgxpool.Pool
}

var _ TxBeginner = (*poolTxBeginner)(nil)

// NewPoolTxBeginner оборачивает пул соединений в TxBeginner.
func NewPoolTxBeginner(pool *pgxpool.Pool) TxBeginner {
	return &poolTxBeginner{pool: pool}
}

func (p *poolTxBeginner) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}
