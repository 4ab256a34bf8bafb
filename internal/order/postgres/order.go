package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	orderDatamodel "github.com/thaohienhomes/phochat-payments/internal/core/datamodel/order"
	orderpkg "github.com/thaohienhomes/phochat-payments/internal/order"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) orderpkg.RepositoryAPI {
	return &OrderRepository{
		db: db,
	}
}

func (r *OrderRepository) CreateIfAbsent(ctx context.Context, o *orderDatamodel.Order) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_code"}},
			DoNothing: true,
		}).
		Create(o)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *OrderRepository) GetByOrderCode(ctx context.Context, orderCode int64) (*orderDatamodel.Order, error) {
	var o orderDatamodel.Order
	err := r.db.WithContext(ctx).Where("order_code = ?", orderCode).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*orderDatamodel.Order, error) {
	var o orderDatamodel.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// SetStatusIfPending is a compare-and-set on status: the WHERE clause carries
// the expected current value, so concurrent writers see exactly one success.
func (r *OrderRepository) SetStatusIfPending(ctx context.Context, orderCode int64, status orderDatamodel.Status, at time.Time) (*orderDatamodel.Order, bool, error) {
	res := r.db.WithContext(ctx).
		Model(&orderDatamodel.Order{}).
		Where("order_code = ? AND status = ?", orderCode, orderDatamodel.StatusPending).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": at,
		})
	if res.Error != nil {
		return nil, false, res.Error
	}

	o, err := r.GetByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, false, err
	}
	return o, res.RowsAffected == 1, nil
}

func (r *OrderRepository) AttachCheckoutInfo(ctx context.Context, orderCode int64, paymentLinkID, checkoutURL *string, at time.Time) (*orderDatamodel.Order, error) {
	updates := map[string]interface{}{
		"updated_at": at,
	}
	if paymentLinkID != nil {
		updates["payment_link_id"] = gorm.Expr("COALESCE(payment_link_id, ?)", *paymentLinkID)
	}
	if checkoutURL != nil {
		updates["checkout_url"] = gorm.Expr("COALESCE(checkout_url, ?)", *checkoutURL)
	}

	res := r.db.WithContext(ctx).
		Model(&orderDatamodel.Order{}).
		Where("order_code = ?", orderCode).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByOrderCode(ctx, orderCode)
}

// ListPendingCreatedBefore is strict: an order created exactly at cutoff waits
// for the next sweep.
func (r *OrderRepository) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*orderDatamodel.Order, error) {
	var orders []*orderDatamodel.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", orderDatamodel.StatusPending, cutoff).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

func (r *OrderRepository) ListRecent(ctx context.Context, status orderDatamodel.Status, limit int) ([]*orderDatamodel.Order, error) {
	var orders []*orderDatamodel.Order
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&orders).Error
	return orders, err
}
