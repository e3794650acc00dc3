package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"github.com/shopspring/decimal"
)

// Payment is one record of money received against an order, from either the
// completed full-payment feed (TT) or the active installment feed (TG).
type Payment struct {
	ID          int             `gorm:"primary_key" json:"id"`
	OrderId     int             `gorm:"index;not null" json:"order_id"`
	CustomerId  int             `gorm:"index" json:"customer_id"`
	Method      PaymentMethod   `gorm:"type:enum('TT','TG');index" json:"method"`
	Status      PaymentStatus   `gorm:"size:32;index" json:"status"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	PaymentDate *time.Time      `json:"payment_date"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// PaymentIndex is the orderId -> amount lookup the amount resolver falls back
// to when an order carries no usable candidate of its own.
type PaymentIndex map[int]decimal.Decimal

// Merge folds a payment feed into the index, first-seen-wins: an amount
// already present for an order id is never overwritten by a later feed.
func (idx PaymentIndex) Merge(feed []*Payment) {
	for _, payment := range feed {
		if payment == nil {
			continue
		}
		if _, exists := idx[payment.OrderId]; exists {
			continue
		}
		idx[payment.OrderId] = payment.Amount
	}
}

// Lookup returns the amount for an order id, decimal.Zero when absent.
func (idx PaymentIndex) Lookup(orderId int) (decimal.Decimal, bool) {
	amount, ok := idx[orderId]
	if !ok {
		return decimal.Zero, false
	}
	return amount, true
}

// BuildPaymentIndex merges the feeds in the given order under the
// first-seen-wins rule. Callers pass the completed-payments feed before the
// installment feed so a TT amount wins when both feeds carry the same order.
func BuildPaymentIndex(feeds ...[]*Payment) PaymentIndex {
	idx := make(PaymentIndex)
	for _, feed := range feeds {
		idx.Merge(feed)
	}
	return idx
}

// FetchCompletedPayments returns the TT feed: full payments already completed.
func FetchCompletedPayments(ctx context.Context) ([]*Payment, error) {
	db := config.GetDB()
	var results []*Payment
	err := db.WithContext(ctx).
		Where("method = ? AND status = ?", PaymentMethodFull, PaymentStatusCompleted).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FetchActiveInstallmentPayments returns the TG feed: installment payments
// still being collected.
func FetchActiveInstallmentPayments(ctx context.Context) ([]*Payment, error) {
	db := config.GetDB()
	var results []*Payment
	err := db.WithContext(ctx).
		Where("method = ? AND status = ?", PaymentMethodInstallment, PaymentStatusActive).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

const paymentIndexCacheKey = "paymentIndex"

// LoadPaymentIndex builds the merged index from both feeds, TT first. The
// result is cached in redis for a short window because the dealer console
// re-resolves amounts on every customer view.
func LoadPaymentIndex(ctx context.Context) (PaymentIndex, error) {
	cached := make(map[int]decimal.Decimal)
	exists, err := config.GetRedisObject(paymentIndexCacheKey, &cached)
	if err == nil && exists {
		return PaymentIndex(cached), nil
	}

	return RebuildPaymentIndex(ctx)
}

// RebuildPaymentIndex bypasses the cache, rebuilds the index from the feeds
// and refreshes the cached copy.
func RebuildPaymentIndex(ctx context.Context) (PaymentIndex, error) {
	completed, err := FetchCompletedPayments(ctx)
	if err != nil {
		return nil, err
	}
	installments, err := FetchActiveInstallmentPayments(ctx)
	if err != nil {
		return nil, err
	}

	idx := BuildPaymentIndex(completed, installments)
	if err := config.SetRedisObject(paymentIndexCacheKey, idx, 5*time.Minute); err != nil {
		// Cache refresh failure is not fatal; the index itself is correct.
		config.LogError(config.GetLogger(), "payment.go", "RebuildPaymentIndex", "caching payment index", nil, err)
	}
	return idx, nil
}
