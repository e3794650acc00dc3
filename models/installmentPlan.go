package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InstallmentPlan is the amortization schedule for a TG-financed order.
// TotalAmount is the order's resolved amount at plan creation time and acts
// as the reconciliation ceiling; OutstandingAmount never goes negative.
// Plans are created when a financed order is booked and are never deleted
// here; they are mutated only through the installment ledger.
type InstallmentPlan struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	OrderId             int             `gorm:"index;not null" json:"order_id" binding:"required"`
	CustomerId          int             `gorm:"index;not null" json:"customer_id" binding:"required"`
	MonthlyPay          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"monthly_pay"`
	InterestRate        decimal.Decimal `gorm:"type:decimal(8,4);default:0" json:"interest_rate"`
	RemainingTermMonths int             `gorm:"not null;default:0" json:"remaining_term_months"`
	OutstandingAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"outstanding_amount"`
	TotalAmount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Status              PlanStatus      `gorm:"type:enum('Active','Overdue','Paid');default:'Active';index" json:"status"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// PaidAmount is derived, not stored: what has been collected so far against
// the plan's total, floored at zero.
func (p InstallmentPlan) PaidAmount() decimal.Decimal {
	paid := p.TotalAmount.Sub(p.OutstandingAmount)
	if paid.IsNegative() {
		return decimal.Zero
	}
	return paid
}

func GetInstallmentPlan(ctx context.Context, id int) (*InstallmentPlan, error) {
	db := config.GetDB()

	var result InstallmentPlan
	err := db.WithContext(ctx).First(&result, id).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// GetInstallmentPlanByOrder resolves a plan through its order reference, for
// callers that only hold an order id.
func GetInstallmentPlanByOrder(ctx context.Context, orderId int) (*InstallmentPlan, error) {
	if orderId <= 0 {
		return nil, errors.New("order id is required")
	}

	db := config.GetDB()
	var result InstallmentPlan
	err := db.WithContext(ctx).Where("order_id = ?", orderId).Take(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetInstallmentPlansForCustomer lists a customer's plans, newest first.
func GetInstallmentPlansForCustomer(ctx context.Context, customerId int) ([]*InstallmentPlan, error) {
	db := config.GetDB()
	var results []*InstallmentPlan
	err := db.WithContext(ctx).
		Where("customer_id = ?", customerId).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// IsPlanNotFound reports whether an error from the plan getters means the
// reference simply does not exist (as opposed to a query failure).
func IsPlanNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
