package postgres

import (
	"context"

	"gorm.io/gorm"

	ledgerPostgres "github.com/thaohienhomes/phochat-payments/internal/ledger/postgres"
	orderPostgres "github.com/thaohienhomes/phochat-payments/internal/order/postgres"
	"github.com/thaohienhomes/phochat-payments/internal/webhook"
)

// TxRunner opens a gorm transaction and hands out repositories bound to it.
type TxRunner struct {
	db *gorm.DB
}

func NewTxRunner(db *gorm.DB) *TxRunner {
	return &TxRunner{db: db}
}

func (r *TxRunner) InTx(ctx context.Context, fn func(ctx context.Context, stores webhook.Stores) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, webhook.Stores{
			Orders: orderPostgres.NewOrderRepository(tx),
			Ledger: ledgerPostgres.NewWebhookEventRepository(tx),
		})
	})
}
