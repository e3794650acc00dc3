package workflow

import (
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/dealer_backend/models"
)

// NOTE: These tests are intentionally DB-free. They validate resolution
// semantics over in-memory normalized orders; DB integration tests belong in
// an environment that can run MySQL.

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func intPtr(v int) *int {
	return &v
}

func TestResolveOrderAmount_PrecedenceChain(t *testing.T) {
	// The index is keyed by order id; orders outside it use ids the index
	// does not carry.
	index := models.PaymentIndex{42: dec(7_000_000)}

	cases := []struct {
		name       string
		orderId    int
		candidates models.AmountCandidates
		want       decimal.Decimal
	}{
		{
			name:    "confirmation wins over everything",
			orderId: 42,
			candidates: models.AmountCandidates{
				ConfirmationAmount: decPtr(10_000_000),
				DetailAmount:       decPtr(9_000_000),
				PaymentAmount:      decPtr(8_000_000),
			},
			want: dec(10_000_000),
		},
		{
			name:    "detail wins when confirmation absent",
			orderId: 1,
			candidates: models.AmountCandidates{
				DetailAmount:  decPtr(9_000_000),
				PaymentAmount: decPtr(8_000_000),
			},
			want: dec(9_000_000),
		},
		{
			name:    "payment amount wins when detail absent",
			orderId: 42,
			candidates: models.AmountCandidates{
				PaymentAmount: decPtr(8_000_000),
			},
			want: dec(8_000_000),
		},
		{
			name:       "index fallback by order id with no sub-records",
			orderId:    42,
			candidates: models.AmountCandidates{},
			want:       dec(7_000_000),
		},
		{
			name:       "nothing resolvable",
			orderId:    1,
			candidates: models.AmountCandidates{},
			want:       decimal.Zero,
		},
		{
			name:    "present zero confirmation falls through to detail",
			orderId: 1,
			candidates: models.AmountCandidates{
				ConfirmationAmount: decPtr(0),
				DetailAmount:       decPtr(9_000_000),
			},
			want: dec(9_000_000),
		},
		{
			name:    "zero payment amount falls through to index",
			orderId: 42,
			candidates: models.AmountCandidates{
				PaymentAmount: decPtr(0),
			},
			want: dec(7_000_000),
		},
		{
			name:    "negative candidate falls through",
			orderId: 1,
			candidates: models.AmountCandidates{
				ConfirmationAmount: decPtr(-1_000_000),
				DetailAmount:       decPtr(9_000_000),
			},
			want: dec(9_000_000),
		},
		{
			name:       "order id missing from index",
			orderId:    999,
			candidates: models.AmountCandidates{},
			want:       decimal.Zero,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := models.NormalizedOrder{
				OrderId:    tc.orderId,
				Status:     models.OrderStatusDelivered,
				Candidates: tc.candidates,
			}
			got := ResolveOrderAmount(order, index)
			if !got.Equal(tc.want) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestResolveOrderAmount_CancellationOverridesEverything(t *testing.T) {
	// Order 42 is in the index, so even the last-resort source is available
	// and must still be discarded.
	index := models.PaymentIndex{42: dec(7_000_000)}

	for _, status := range []string{"Cancelled", "cancelled", "CANCELLED", "cancel", "canceled", " Canceled "} {
		order := models.NormalizedOrder{
			OrderId: 42,
			Status:  models.NormalizeOrderStatus(status),
			Candidates: models.AmountCandidates{
				ConfirmationAmount: decPtr(10_000_000),
				DetailAmount:       decPtr(9_000_000),
				PaymentAmount:      decPtr(8_000_000),
			},
		}
		if got := ResolveOrderAmount(order, index); !got.IsZero() {
			t.Fatalf("status %q: expected zero for cancelled order, got %s", status, got)
		}
	}

	bare := models.NormalizedOrder{OrderId: 42, Status: models.OrderStatusCancelled}
	if got := ResolveOrderAmount(bare, index); !got.IsZero() {
		t.Fatalf("expected zero for cancelled order resolved only via index, got %s", got)
	}
}

func TestResolveOrders_LastKnownAmountSurvivesCancellation(t *testing.T) {
	orders := []*models.Order{
		{
			ID:         1,
			CustomerId: 10,
			Status:     "canceled",
			Confirmation: &models.SaleConfirmation{
				OrderId:    1,
				TotalPrice: dec(5_000_000),
			},
		},
	}

	resolved := ResolveOrders(orders, nil)
	if len(resolved) != 1 {
		t.Fatalf("expected 1 resolved order, got %d", len(resolved))
	}
	if !resolved[0].ResolvedAmount.IsZero() {
		t.Fatalf("expected resolved amount zero, got %s", resolved[0].ResolvedAmount)
	}
	if !resolved[0].LastKnownAmount.Equal(dec(5_000_000)) {
		t.Fatalf("expected last known amount 5000000, got %s", resolved[0].LastKnownAmount)
	}
}

func TestResolveOrders_DetailComputedFromQuantityAndUnitPrice(t *testing.T) {
	orders := []*models.Order{
		{
			ID:         2,
			CustomerId: 10,
			Status:     "Delivered",
			Detail: &models.OrderDetail{
				OrderId:   2,
				Quantity:  3,
				UnitPrice: dec(2_500_000),
			},
		},
	}

	resolved := ResolveOrders(orders, nil)
	if !resolved[0].ResolvedAmount.Equal(dec(7_500_000)) {
		t.Fatalf("expected 7500000, got %s", resolved[0].ResolvedAmount)
	}
}

func TestResolveOrders_IndexFallbackUsesOrderId(t *testing.T) {
	// A bare order row with no detail/confirmation/payment sub-records must
	// still pick up its amount from the index entry for its own id.
	orders := []*models.Order{
		{ID: 42, CustomerId: 10, Status: "Delivered"},
	}
	index := models.PaymentIndex{42: dec(7_000_000)}

	resolved := ResolveOrders(orders, index)
	if !resolved[0].ResolvedAmount.Equal(dec(7_000_000)) {
		t.Fatalf("expected index amount 7000000 for order 42, got %s", resolved[0].ResolvedAmount)
	}
	if !resolved[0].LastKnownAmount.Equal(dec(7_000_000)) {
		t.Fatalf("expected last known amount 7000000, got %s", resolved[0].LastKnownAmount)
	}
}

func TestResolveOrders_SkipsNilEntries(t *testing.T) {
	orders := []*models.Order{nil, {ID: 1, CustomerId: 10, Status: "Pending"}, nil}
	resolved := ResolveOrders(orders, nil)
	if len(resolved) != 1 {
		t.Fatalf("expected 1 resolved order, got %d", len(resolved))
	}
}

func TestPaymentIndex_FirstSeenWins(t *testing.T) {
	completed := []*models.Payment{
		{OrderId: 1, Method: models.PaymentMethodFull, Amount: dec(10_000_000)},
		{OrderId: 2, Method: models.PaymentMethodFull, Amount: dec(4_000_000)},
	}
	installments := []*models.Payment{
		{OrderId: 1, Method: models.PaymentMethodInstallment, Amount: dec(500_000)},
		{OrderId: 3, Method: models.PaymentMethodInstallment, Amount: dec(300_000)},
		nil,
	}

	idx := models.BuildPaymentIndex(completed, installments)

	if amount, ok := idx.Lookup(1); !ok || !amount.Equal(dec(10_000_000)) {
		t.Fatalf("order 1: expected completed feed amount to win, got %s", amount)
	}
	if amount, ok := idx.Lookup(3); !ok || !amount.Equal(dec(300_000)) {
		t.Fatalf("order 3: expected installment amount, got %s", amount)
	}
	if _, ok := idx.Lookup(999); ok {
		t.Fatal("expected miss for unknown order id")
	}
}
