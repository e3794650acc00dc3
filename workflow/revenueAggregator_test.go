package workflow

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/dealer_backend/models"
)

func deliveredOrder(id int, amount int64, staffId int) models.NormalizedOrder {
	return models.NormalizedOrder{
		OrderId:        id,
		Status:         models.OrderStatusDelivered,
		DealerStaffId:  intPtr(staffId),
		ResolvedAmount: dec(amount),
	}
}

func cancelledOrder(id int, staffId int) models.NormalizedOrder {
	return models.NormalizedOrder{
		OrderId:        id,
		Status:         models.OrderStatusCancelled,
		DealerStaffId:  intPtr(staffId),
		ResolvedAmount: decimal.Zero,
	}
}

func TestAggregateCustomerRevenue_FullScenario(t *testing.T) {
	orders := []models.NormalizedOrder{
		deliveredOrder(1, 10_000_000, 7),
		cancelledOrder(2, 7),
		deliveredOrder(3, 8_000_000, 9),
	}

	analytics := AggregateCustomerRevenue(orders)

	if analytics.TotalOrders != 3 {
		t.Fatalf("expected 3 total orders, got %d", analytics.TotalOrders)
	}
	if analytics.ActiveOrderCount != 2 {
		t.Fatalf("expected 2 active orders, got %d", analytics.ActiveOrderCount)
	}
	if !analytics.TotalRevenue.Equal(dec(18_000_000)) {
		t.Fatalf("expected revenue 18000000, got %s", analytics.TotalRevenue)
	}
	if !analytics.AverageOrderValue.Equal(dec(9_000_000)) {
		t.Fatalf("expected AOV 9000000, got %s", analytics.AverageOrderValue)
	}

	staff7 := analytics.StaffDistribution[7]
	if staff7 == nil || staff7.OrderCount != 2 || !staff7.Revenue.Equal(dec(10_000_000)) {
		t.Fatalf("staff 7: expected 2 orders / 10000000 revenue, got %+v", staff7)
	}
	staff9 := analytics.StaffDistribution[9]
	if staff9 == nil || staff9.OrderCount != 1 || !staff9.Revenue.Equal(dec(8_000_000)) {
		t.Fatalf("staff 9: expected 1 order / 8000000 revenue, got %+v", staff9)
	}

	if analytics.Segment != models.CustomerSegmentRegular {
		t.Fatalf("expected Regular for 2 active orders, got %s", analytics.Segment)
	}
}

func TestAggregateCustomerRevenue_OrderIndependence(t *testing.T) {
	base := []models.NormalizedOrder{
		deliveredOrder(1, 10_000_000, 7),
		cancelledOrder(2, 7),
		deliveredOrder(3, 8_000_000, 9),
		cancelledOrder(4, 9),
		deliveredOrder(5, 3_000_000, 7),
	}
	reference := AggregateCustomerRevenue(base)

	rng := rand.New(rand.NewSource(1))
	for run := 0; run < 100; run++ {
		shuffled := make([]models.NormalizedOrder, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got := AggregateCustomerRevenue(shuffled)
		if got.TotalOrders != reference.TotalOrders ||
			got.ActiveOrderCount != reference.ActiveOrderCount ||
			!got.TotalRevenue.Equal(reference.TotalRevenue) ||
			!got.AverageOrderValue.Equal(reference.AverageOrderValue) ||
			got.Segment != reference.Segment {
			t.Fatalf("run=%d aggregation depends on input order: %+v vs %+v", run, got, reference)
		}
		for staffId, want := range reference.StaffDistribution {
			share := got.StaffDistribution[staffId]
			if share == nil || share.OrderCount != want.OrderCount || !share.Revenue.Equal(want.Revenue) {
				t.Fatalf("run=%d staff %d diverged: %+v vs %+v", run, staffId, share, want)
			}
		}
	}
}

func TestAggregateCustomerRevenue_CancelledNeverInRevenue(t *testing.T) {
	// Cancelled orders carry a non-zero resolved amount here on purpose;
	// exclusion must key off status, not off the amount being zero.
	orders := []models.NormalizedOrder{
		deliveredOrder(1, 5_000_000, 7),
		{
			OrderId:        2,
			Status:         models.OrderStatusCancelled,
			DealerStaffId:  intPtr(7),
			ResolvedAmount: dec(99_000_000),
		},
	}

	analytics := AggregateCustomerRevenue(orders)
	if !analytics.TotalRevenue.Equal(dec(5_000_000)) {
		t.Fatalf("expected 5000000, got %s", analytics.TotalRevenue)
	}
	if !analytics.StaffDistribution[7].Revenue.Equal(dec(5_000_000)) {
		t.Fatalf("staff revenue must exclude cancelled orders, got %s", analytics.StaffDistribution[7].Revenue)
	}
	if analytics.StaffDistribution[7].OrderCount != 2 {
		t.Fatalf("staff order count must include cancelled orders, got %d", analytics.StaffDistribution[7].OrderCount)
	}
}

func TestAggregateCustomerRevenue_SegmentThresholds(t *testing.T) {
	cases := []struct {
		active    int
		cancelled int
		want      models.CustomerSegment
	}{
		{active: 0, cancelled: 0, want: models.CustomerSegmentNew},
		{active: 1, cancelled: 4, want: models.CustomerSegmentNew},
		{active: 2, cancelled: 3, want: models.CustomerSegmentRegular},
		{active: 4, cancelled: 0, want: models.CustomerSegmentRegular},
		{active: 5, cancelled: 0, want: models.CustomerSegmentVIP},
		{active: 9, cancelled: 5, want: models.CustomerSegmentVIP},
	}

	for _, tc := range cases {
		var orders []models.NormalizedOrder
		id := 1
		for i := 0; i < tc.active; i++ {
			orders = append(orders, deliveredOrder(id, 1_000_000, 7))
			id++
		}
		for i := 0; i < tc.cancelled; i++ {
			orders = append(orders, cancelledOrder(id, 7))
			id++
		}

		analytics := AggregateCustomerRevenue(orders)
		if analytics.Segment != tc.want {
			t.Fatalf("active=%d cancelled=%d: expected %s, got %s",
				tc.active, tc.cancelled, tc.want, analytics.Segment)
		}
		if analytics.TotalOrders != tc.active+tc.cancelled {
			t.Fatalf("active=%d cancelled=%d: expected %d total, got %d",
				tc.active, tc.cancelled, tc.active+tc.cancelled, analytics.TotalOrders)
		}
	}
}

func TestAggregateCustomerRevenue_EmptyInput(t *testing.T) {
	analytics := AggregateCustomerRevenue(nil)

	if analytics.TotalOrders != 0 || analytics.ActiveOrderCount != 0 {
		t.Fatalf("expected zero counts, got %+v", analytics)
	}
	if !analytics.TotalRevenue.IsZero() || !analytics.AverageOrderValue.IsZero() {
		t.Fatalf("expected zero money values, got %+v", analytics)
	}
	if analytics.FirstOrderDate != nil || analytics.LastOrderDate != nil {
		t.Fatal("expected nil order dates for empty input")
	}
	if analytics.Segment != models.CustomerSegmentNew {
		t.Fatalf("expected New, got %s", analytics.Segment)
	}
}

func TestAggregateCustomerRevenue_NilStaffIdIgnoredInDistribution(t *testing.T) {
	orders := []models.NormalizedOrder{
		{OrderId: 1, Status: models.OrderStatusDelivered, ResolvedAmount: dec(1_000_000)},
		deliveredOrder(2, 2_000_000, 7),
	}

	analytics := AggregateCustomerRevenue(orders)
	if len(analytics.StaffDistribution) != 1 {
		t.Fatalf("expected only staff 7 in distribution, got %d entries", len(analytics.StaffDistribution))
	}
	if !analytics.TotalRevenue.Equal(dec(3_000_000)) {
		t.Fatalf("unassigned orders still count toward revenue, got %s", analytics.TotalRevenue)
	}
}

func TestAggregateCustomerRevenue_OrderDates(t *testing.T) {
	day := func(d int) *time.Time {
		v := time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
		return &v
	}

	cancelled := cancelledOrder(4, 7)
	cancelled.OrderDate = day(1) // earliest, but cancelled orders never set the range

	orders := []models.NormalizedOrder{
		{OrderId: 1, Status: models.OrderStatusDelivered, OrderDate: day(10), ResolvedAmount: dec(1)},
		{OrderId: 2, Status: models.OrderStatusDelivered, OrderDate: day(5), ResolvedAmount: dec(1)},
		{OrderId: 3, Status: models.OrderStatusDelivered, ResolvedAmount: dec(1)}, // null date ignored
		cancelled,
	}

	analytics := AggregateCustomerRevenue(orders)
	if analytics.FirstOrderDate == nil || !analytics.FirstOrderDate.Equal(*day(5)) {
		t.Fatalf("expected first order date June 5, got %v", analytics.FirstOrderDate)
	}
	if analytics.LastOrderDate == nil || !analytics.LastOrderDate.Equal(*day(10)) {
		t.Fatalf("expected last order date June 10, got %v", analytics.LastOrderDate)
	}
}
