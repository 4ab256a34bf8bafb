package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thaohienhomes/phochat-payments/internal/core/datamodel/webhookevent"
	"github.com/thaohienhomes/phochat-payments/internal/ledger"
)

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) ledger.RepositoryAPI {
	return &WebhookEventRepository{
		db: db,
	}
}

func (r *WebhookEventRepository) RecordIfNew(ctx context.Context, e *webhookevent.WebhookEvent) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_hash"}},
			DoNothing: true,
		}).
		Create(e)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *WebhookEventRepository) ListByOrderCode(ctx context.Context, orderCode int64) ([]*webhookevent.WebhookEvent, error) {
	var evts []*webhookevent.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("order_code = ?", orderCode).
		Order("received_at ASC, id ASC").
		Find(&evts).Error
	if err != nil {
		return nil, err
	}
	return evts, nil
}
