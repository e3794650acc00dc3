package workflow

import (
	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/dealer_backend/models"
)

// resolveCandidates walks the precedence chain over whatever price signals the
// order carries: sale confirmation total, then detail quantity times unit
// price, then the order's own payment amount, then the payment-index lookup by
// the order's id. A candidate only wins when it is present AND positive; a
// present zero or negative falls through to the next source. When nothing
// matches the amount is zero.
func resolveCandidates(order models.NormalizedOrder, index models.PaymentIndex) decimal.Decimal {
	c := order.Candidates

	if c.ConfirmationAmount != nil && c.ConfirmationAmount.IsPositive() {
		return *c.ConfirmationAmount
	}
	if c.DetailAmount != nil && c.DetailAmount.IsPositive() {
		return *c.DetailAmount
	}
	if c.PaymentAmount != nil && c.PaymentAmount.IsPositive() {
		return *c.PaymentAmount
	}
	// The index is keyed by order id, so the lookup works even when the order
	// carries no payment sub-record at all.
	if index != nil {
		if amount, ok := index.Lookup(order.OrderId); ok && amount.IsPositive() {
			return amount
		}
	}
	return decimal.Zero
}

// ResolveOrderAmount computes the effective amount of a single order.
// Cancellation overrides everything: a cancelled order resolves to zero no
// matter what its candidates say.
func ResolveOrderAmount(order models.NormalizedOrder, index models.PaymentIndex) decimal.Decimal {
	if order.Status.IsCancelled() {
		return decimal.Zero
	}
	return resolveCandidates(order, index)
}

// ResolveOrders normalizes and resolves a batch of raw orders. LastKnownAmount
// keeps the chain result even for cancelled orders so the console can still
// show what the order was worth before cancellation.
func ResolveOrders(orders []*models.Order, index models.PaymentIndex) []models.NormalizedOrder {
	results := make([]models.NormalizedOrder, 0, len(orders))
	for _, order := range orders {
		if order == nil {
			continue
		}
		normalized := models.NormalizeOrder(order)
		normalized.LastKnownAmount = resolveCandidates(normalized, index)
		normalized.ResolvedAmount = ResolveOrderAmount(normalized, index)
		results = append(results, normalized)
	}
	return results
}
