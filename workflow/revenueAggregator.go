package workflow

import (
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/dealer_backend/models"
)

// StaffShare is one staff member's slice of a customer's orders. OrderCount
// counts every order handled, cancelled included; Revenue only sums
// non-cancelled resolved amounts.
type StaffShare struct {
	OrderCount int             `json:"order_count"`
	Revenue    decimal.Decimal `json:"revenue"`
}

// CustomerAnalytics is the aggregated view of one customer's order history.
type CustomerAnalytics struct {
	TotalOrders       int                    `json:"total_orders"`
	ActiveOrderCount  int                    `json:"active_order_count"`
	TotalRevenue      decimal.Decimal        `json:"total_revenue"`
	AverageOrderValue decimal.Decimal        `json:"average_order_value"`
	StaffDistribution map[int]*StaffShare    `json:"staff_distribution"`
	FirstOrderDate    *time.Time             `json:"first_order_date"`
	LastOrderDate     *time.Time             `json:"last_order_date"`
	Segment           models.CustomerSegment `json:"segment"`
}

// AggregateCustomerRevenue folds resolved orders into customer analytics.
// Cancelled orders still count toward totals and staff order counts but
// contribute nothing to revenue. The result does not depend on input order.
func AggregateCustomerRevenue(orders []models.NormalizedOrder) CustomerAnalytics {
	analytics := CustomerAnalytics{
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		StaffDistribution: make(map[int]*StaffShare),
	}

	for _, order := range orders {
		analytics.TotalOrders++
		cancelled := order.Status.IsCancelled()
		if !cancelled {
			analytics.ActiveOrderCount++
			analytics.TotalRevenue = analytics.TotalRevenue.Add(order.ResolvedAmount)
		}

		if order.DealerStaffId != nil {
			share, ok := analytics.StaffDistribution[*order.DealerStaffId]
			if !ok {
				share = &StaffShare{Revenue: decimal.Zero}
				analytics.StaffDistribution[*order.DealerStaffId] = share
			}
			share.OrderCount++
			if !cancelled {
				share.Revenue = share.Revenue.Add(order.ResolvedAmount)
			}
		}

		if !cancelled && order.OrderDate != nil {
			date := *order.OrderDate
			if analytics.FirstOrderDate == nil || date.Before(*analytics.FirstOrderDate) {
				analytics.FirstOrderDate = &date
			}
			if analytics.LastOrderDate == nil || date.After(*analytics.LastOrderDate) {
				analytics.LastOrderDate = &date
			}
		}
	}

	if analytics.ActiveOrderCount > 0 {
		analytics.AverageOrderValue = analytics.TotalRevenue.
			Div(decimal.NewFromInt(int64(analytics.ActiveOrderCount)))
	}

	analytics.Segment = segmentFor(analytics.ActiveOrderCount)
	return analytics
}

// segmentFor buckets a customer by non-cancelled order count.
func segmentFor(activeOrders int) models.CustomerSegment {
	switch {
	case activeOrders >= 5:
		return models.CustomerSegmentVIP
	case activeOrders >= 2:
		return models.CustomerSegmentRegular
	default:
		return models.CustomerSegmentNew
	}
}
