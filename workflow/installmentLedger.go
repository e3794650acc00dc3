package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/models"
)

var (
	// ErrInvalidMonths means months was not a positive count within the plan's
	// remaining term.
	ErrInvalidMonths = errors.New("months must be positive and within the remaining term")
	// ErrAlreadyPaid means the plan is settled; paid plans never reopen.
	ErrAlreadyPaid = errors.New("installment plan is already paid")
	// ErrMissingPlanReference means neither the plan id nor the order id led to
	// an existing plan.
	ErrMissingPlanReference = errors.New("no installment plan found for the given reference")
	// ErrPersistenceFailure wraps a failed write; the plan keeps its prior
	// persisted state when this is returned.
	ErrPersistenceFailure = errors.New("failed to persist installment plan update")
	// ErrPlanUpdateInFlight means another payment recording holds the per-plan
	// lock right now.
	ErrPlanUpdateInFlight = errors.New("another update for this plan is in progress")
)

// PlanReference identifies a plan either directly or through its order.
// PlanId wins when both are set.
type PlanReference struct {
	PlanId  int `json:"plan_id"`
	OrderId int `json:"order_id"`
}

// PlanSource resolves a plan reference to the current plan row.
type PlanSource interface {
	ResolvePlan(ctx context.Context, ref PlanReference) (*models.InstallmentPlan, error)
}

// PlanUpdater persists the new absolute plan values. Implementations must be
// atomic: either the whole snapshot lands or none of it does.
type PlanUpdater interface {
	PersistPlan(ctx context.Context, plan *models.InstallmentPlan, monthsRecorded int) error
}

// Ledger records installment payments against plans. Recording is not
// idempotent; retrying a timed-out call records the months again. The redis
// lock keeps at most one recording in flight per plan, it does not deduplicate.
type Ledger struct {
	Logger  *logrus.Logger
	Source  PlanSource
	Updater PlanUpdater
	Locker  *redislock.Client
}

func NewLedger(db *gorm.DB, logger *logrus.Logger, locker *redislock.Client) *Ledger {
	return &Ledger{
		Logger:  logger,
		Source:  &gormPlanSource{},
		Updater: &gormPlanUpdater{db: db},
		Locker:  locker,
	}
}

// applyPayment holds every transition rule in one place. It mutates the given
// plan to its post-payment state and returns the validation error, if any,
// before any mutation happens.
func applyPayment(plan *models.InstallmentPlan, months int) error {
	if plan.Status == models.PlanStatusPaid {
		return ErrAlreadyPaid
	}
	if months <= 0 || months > plan.RemainingTermMonths {
		return ErrInvalidMonths
	}

	payment := plan.MonthlyPay.Mul(decimal.NewFromInt(int64(months)))
	newOutstanding := plan.OutstandingAmount.Sub(payment)
	if newOutstanding.IsNegative() {
		newOutstanding = decimal.Zero
	}

	plan.OutstandingAmount = newOutstanding
	plan.RemainingTermMonths -= months

	// Overdue is sticky: it only clears by reaching Paid, never back to Active.
	if plan.RemainingTermMonths == 0 {
		plan.Status = models.PlanStatusPaid
	}
	return nil
}

// RecordPayment records the given number of monthly installments against the
// referenced plan and returns the plan's new state.
func (l *Ledger) RecordPayment(ctx context.Context, ref PlanReference, months int) (*models.InstallmentPlan, error) {
	plan, err := l.Source.ResolvePlan(ctx, ref)
	if err != nil {
		return nil, err
	}

	if l.Locker != nil {
		lockKey := fmt.Sprintf("planUpdate:%d", plan.ID)
		lock, lockErr := l.Locker.Obtain(ctx, lockKey, 30*time.Second, nil)
		if lockErr == redislock.ErrNotObtained {
			return nil, ErrPlanUpdateInFlight
		} else if lockErr != nil {
			config.LogError(l.Logger, "installmentLedger.go", "RecordPayment", "obtaining plan lock", plan.ID, lockErr)
			return nil, lockErr
		}
		defer func() {
			_ = lock.Release(ctx)
		}()
	}

	if err := applyPayment(plan, months); err != nil {
		return nil, err
	}

	if err := l.Updater.PersistPlan(ctx, plan, months); err != nil {
		config.LogError(l.Logger, "installmentLedger.go", "RecordPayment", "persisting plan update", plan.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	return plan, nil
}

// RecordOneMonth is the single-month shortcut the console's quick-record
// button uses.
func (l *Ledger) RecordOneMonth(ctx context.Context, ref PlanReference) (*models.InstallmentPlan, error) {
	return l.RecordPayment(ctx, ref, 1)
}

type gormPlanSource struct{}

func (s *gormPlanSource) ResolvePlan(ctx context.Context, ref PlanReference) (*models.InstallmentPlan, error) {
	if ref.PlanId > 0 {
		plan, err := models.GetInstallmentPlan(ctx, ref.PlanId)
		if err == nil {
			return plan, nil
		}
		if !models.IsPlanNotFound(err) {
			return nil, err
		}
	}

	if ref.OrderId > 0 {
		plan, err := models.GetInstallmentPlanByOrder(ctx, ref.OrderId)
		if err == nil {
			return plan, nil
		}
		if !models.IsPlanNotFound(err) {
			return nil, err
		}
	}

	return nil, ErrMissingPlanReference
}

// gormPlanUpdater writes the plan snapshot and its outbox row in one
// transaction so a published update always reflects a committed state.
type gormPlanUpdater struct {
	db *gorm.DB
}

func (u *gormPlanUpdater) PersistPlan(ctx context.Context, plan *models.InstallmentPlan, monthsRecorded int) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.InstallmentPlan{}).
			Where("id = ?", plan.ID).
			Updates(map[string]interface{}{
				"status":                plan.Status,
				"remaining_term_months": plan.RemainingTermMonths,
				"outstanding_amount":    plan.OutstandingAmount,
			}).Error
		if err != nil {
			return err
		}

		return models.QueuePlanUpdate(ctx, tx, plan, monthsRecorded)
	})
}
