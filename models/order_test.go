package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeOrderStatus(t *testing.T) {
	cases := map[string]OrderStatus{
		"Pending":     OrderStatusPending,
		"pending":     OrderStatusPending,
		"APPROVED":    OrderStatusApproved,
		"Delivered":   OrderStatusDelivered,
		"cancel":      OrderStatusCancelled,
		"Cancelled":   OrderStatusCancelled,
		"canceled":    OrderStatusCancelled,
		"CANCELED":    OrderStatusCancelled,
		" delivered ": OrderStatusDelivered,
		"Refunded":    OrderStatus("Refunded"), // unknown statuses pass through
	}

	for raw, want := range cases {
		if got := NormalizeOrderStatus(raw); got != want {
			t.Fatalf("%q: expected %q, got %q", raw, want, got)
		}
	}
}

func TestOrderStatusIsCancelled(t *testing.T) {
	for _, raw := range []string{"cancel", "Cancelled", "canceled", "CANCELLED"} {
		if !OrderStatus(raw).IsCancelled() {
			t.Fatalf("%q should be cancelled", raw)
		}
	}
	for _, raw := range []string{"Pending", "Delivered", "", "Refunded"} {
		if OrderStatus(raw).IsCancelled() {
			t.Fatalf("%q should not be cancelled", raw)
		}
	}
}

func TestNormalizeOrder_CandidatePresence(t *testing.T) {
	paymentId := 55
	order := &Order{
		ID:         1,
		CustomerId: 10,
		Status:     "delivered",
		Detail: &OrderDetail{
			OrderId:   1,
			Quantity:  2,
			UnitPrice: decimal.NewFromInt(3_000_000),
		},
		Payment: &OrderPayment{
			OrderId:   1,
			PaymentId: &paymentId,
			Amount:    decimal.Zero,
		},
	}

	normalized := NormalizeOrder(order)

	if normalized.Status != OrderStatusDelivered {
		t.Fatalf("expected Delivered, got %s", normalized.Status)
	}
	if normalized.Candidates.ConfirmationAmount != nil {
		t.Fatal("no confirmation sub-record, candidate must be nil")
	}
	if normalized.Candidates.DetailAmount == nil ||
		!normalized.Candidates.DetailAmount.Equal(decimal.NewFromInt(6_000_000)) {
		t.Fatalf("expected detail candidate 6000000, got %v", normalized.Candidates.DetailAmount)
	}
	// A present zero amount is still a present candidate; precedence decides
	// later whether it is usable.
	if normalized.Candidates.PaymentAmount == nil || !normalized.Candidates.PaymentAmount.IsZero() {
		t.Fatalf("expected present zero payment candidate, got %v", normalized.Candidates.PaymentAmount)
	}
}

func TestNormalizeOrder_BareOrder(t *testing.T) {
	normalized := NormalizeOrder(&Order{ID: 2, CustomerId: 10, Status: "Pending"})

	if normalized.Candidates.ConfirmationAmount != nil ||
		normalized.Candidates.DetailAmount != nil ||
		normalized.Candidates.PaymentAmount != nil {
		t.Fatalf("expected no candidates for a bare order, got %+v", normalized.Candidates)
	}
	if !normalized.ResolvedAmount.IsZero() {
		t.Fatalf("normalizer must not resolve amounts, got %s", normalized.ResolvedAmount)
	}
}

func TestPaymentIndexMerge_DoesNotOverwrite(t *testing.T) {
	idx := PaymentIndex{1: decimal.NewFromInt(100)}
	idx.Merge([]*Payment{
		{OrderId: 1, Amount: decimal.NewFromInt(999)},
		{OrderId: 2, Amount: decimal.NewFromInt(200)},
	})

	if amount, _ := idx.Lookup(1); !amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("existing entry overwritten: %s", amount)
	}
	if amount, ok := idx.Lookup(2); !ok || !amount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("new entry missing: %s", amount)
	}
}
