package models

import "strings"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusApproved  OrderStatus = "Approved"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// NormalizeOrderStatus maps a raw feed status onto the canonical set.
// The upstream order feeds disagree on spelling; "cancel", "cancelled" and
// "canceled" are all the same state, and comparison is case-insensitive.
// Unknown statuses are preserved as-is rather than rejected, because partial
// data is the normal case for these feeds.
func NormalizeOrderStatus(raw string) OrderStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return OrderStatusPending
	case "approved":
		return OrderStatusApproved
	case "delivered":
		return OrderStatusDelivered
	case "cancel", "cancelled", "canceled":
		return OrderStatusCancelled
	}
	return OrderStatus(strings.TrimSpace(raw))
}

// IsCancelled reports whether the status is the cancelled state under the
// alias-insensitive comparison. Safe to call on raw, un-normalized values.
func (s OrderStatus) IsCancelled() bool {
	return NormalizeOrderStatus(string(s)) == OrderStatusCancelled
}

type PlanStatus string

const (
	PlanStatusActive  PlanStatus = "Active"
	PlanStatusOverdue PlanStatus = "Overdue"
	PlanStatusPaid    PlanStatus = "Paid"
)

type CustomerSegment string

const (
	CustomerSegmentNew     CustomerSegment = "New"
	CustomerSegmentRegular CustomerSegment = "Regular"
	CustomerSegmentVIP     CustomerSegment = "VIP"
)

// PaymentMethod distinguishes the two payment feeds: TT is a completed full
// payment, TG is an active installment payment.
type PaymentMethod string

const (
	PaymentMethodFull        PaymentMethod = "TT"
	PaymentMethodInstallment PaymentMethod = "TG"
)

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusActive    PaymentStatus = "Active"
)

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)
