package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"github.com/shopspring/decimal"
)

// Order is the raw order row as the upstream endpoints return it. The nested
// detail/confirmation/payment sub-records are independently sourced and any of
// them may be missing; normalization must not fail on their absence.
type Order struct {
	ID            int        `gorm:"primary_key" json:"id"`
	CustomerId    int        `gorm:"index;not null" json:"customer_id" binding:"required"`
	ModelId       *int       `gorm:"index" json:"model_id"`
	SerialId      *string    `gorm:"size:64;index" json:"serial_id"`
	Status        string     `gorm:"size:32;index" json:"status"`
	OrderDate     *time.Time `json:"order_date"`
	DealerStaffId *int       `gorm:"index" json:"dealer_staff_id"`

	Detail       *OrderDetail      `gorm:"foreignKey:OrderId" json:"detail"`
	Confirmation *SaleConfirmation `gorm:"foreignKey:OrderId" json:"confirmation"`
	Payment      *OrderPayment     `gorm:"foreignKey:OrderId" json:"payment"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderDetail is the order-line sub-record carrying quantity and unit price.
type OrderDetail struct {
	ID        int             `gorm:"primary_key" json:"id"`
	OrderId   int             `gorm:"index;not null" json:"order_id"`
	Quantity  int             `gorm:"not null;default:0" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// SaleConfirmation carries the negotiated total. Once it exists it is
// authoritative over whatever the detail line computes.
type SaleConfirmation struct {
	ID          int             `gorm:"primary_key" json:"id"`
	OrderId     int             `gorm:"index;not null" json:"order_id"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price"`
	ConfirmedAt *time.Time      `json:"confirmed_at"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderPayment is the payment sub-object embedded on the order itself. Its
// amount may be zero with only a payment id present, in which case the amount
// has to come from the payment feeds instead.
type OrderPayment struct {
	ID        int             `gorm:"primary_key" json:"id"`
	OrderId   int             `gorm:"index;not null" json:"order_id"`
	PaymentId *int            `gorm:"index" json:"payment_id"`
	Method    PaymentMethod   `gorm:"type:enum('TT','TG')" json:"method"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// AmountCandidates is everything on a single order that might indicate price.
// A nil field means the sub-record that would carry it was absent; a present
// zero still loses to the next candidate in the precedence chain.
type AmountCandidates struct {
	ConfirmationAmount *decimal.Decimal `json:"confirmation_amount"`
	DetailAmount       *decimal.Decimal `json:"detail_amount"`
	PaymentAmount      *decimal.Decimal `json:"payment_amount"`
}

// NormalizedOrder is the canonical order view the resolver and aggregator
// operate on. ResolvedAmount is computed, never stored authoritatively;
// LastKnownAmount keeps the pre-cancellation chain result for display only.
type NormalizedOrder struct {
	OrderId       int              `json:"order_id"`
	CustomerId    int              `json:"customer_id"`
	ModelId       *int             `json:"model_id"`
	SerialId      *string          `json:"serial_id"`
	Status        OrderStatus      `json:"status"`
	OrderDate     *time.Time       `json:"order_date"`
	DealerStaffId *int             `json:"dealer_staff_id"`
	Candidates    AmountCandidates `json:"candidates"`

	ResolvedAmount  decimal.Decimal `json:"resolved_amount"`
	LastKnownAmount decimal.Decimal `json:"last_known_amount"`
}

// NormalizeOrder flattens a raw order and its optional sub-records into the
// canonical shape. It populates candidates by field presence only; precedence
// is the resolver's job, not the normalizer's.
func NormalizeOrder(order *Order) NormalizedOrder {
	normalized := NormalizedOrder{
		OrderId:       order.ID,
		CustomerId:    order.CustomerId,
		ModelId:       order.ModelId,
		SerialId:      order.SerialId,
		Status:        NormalizeOrderStatus(order.Status),
		OrderDate:     order.OrderDate,
		DealerStaffId: order.DealerStaffId,
	}

	if order.Confirmation != nil {
		amount := order.Confirmation.TotalPrice
		normalized.Candidates.ConfirmationAmount = &amount
	}
	if order.Detail != nil {
		amount := order.Detail.UnitPrice.Mul(decimal.NewFromInt(int64(order.Detail.Quantity)))
		normalized.Candidates.DetailAmount = &amount
	}
	if order.Payment != nil {
		amount := order.Payment.Amount
		normalized.Candidates.PaymentAmount = &amount
	}

	return normalized
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	db := config.GetDB()

	var result Order
	err := db.WithContext(ctx).
		Preload("Detail").
		Preload("Confirmation").
		Preload("Payment").
		First(&result, id).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// FetchOrdersForCustomer returns the customer's raw orders with whatever
// sub-records exist. Missing sub-records are expected, not an error.
func FetchOrdersForCustomer(ctx context.Context, customerId int) ([]*Order, error) {
	if customerId <= 0 {
		return nil, errors.New("customer id is required")
	}

	db := config.GetDB()
	var results []*Order
	err := db.WithContext(ctx).
		Preload("Detail").
		Preload("Confirmation").
		Preload("Payment").
		Where("customer_id = ?", customerId).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
