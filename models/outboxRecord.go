package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlanUpdateRecord implements the transactional outbox for plan updates:
// the row is written inside the same DB transaction as the plan snapshot,
// and publishing to Pub/Sub happens asynchronously after commit via the
// dispatcher. The snapshot columns carry the new absolute values, not deltas.
type PlanUpdateRecord struct {
	ID                  int        `gorm:"primary_key;index:idx_plan_outbox_dispatch,priority:3" json:"id"`
	PlanId              int        `gorm:"index;not null" json:"plan_id"`
	OrderId             int        `gorm:"index;not null" json:"order_id"`
	CustomerId          int        `gorm:"index" json:"customer_id"`
	Status              PlanStatus `gorm:"type:enum('Active','Overdue','Paid')" json:"status"`
	RemainingTermMonths int        `gorm:"not null" json:"remaining_term_months"`
	OutstandingAmount   string     `gorm:"size:64" json:"outstanding_amount"`
	MonthsRecorded      int        `gorm:"not null;default:0" json:"months_recorded"`

	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_plan_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_plan_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// QueuePlanUpdate writes the outbox row inside the caller's transaction but
// does NOT publish; the dispatcher picks it up after commit.
func QueuePlanUpdate(ctx context.Context, tx *gorm.DB, plan *InstallmentPlan, monthsRecorded int) error {
	record := PlanUpdateRecord{
		PlanId:              plan.ID,
		OrderId:             plan.OrderId,
		CustomerId:          plan.CustomerId,
		Status:              plan.Status,
		RemainingTermMonths: plan.RemainingTermMonths,
		OutstandingAmount:   plan.OutstandingAmount.String(),
		MonthsRecorded:      monthsRecorded,
		PublishStatus:       OutboxPublishStatusPending,
		CorrelationId:       correlationIdFromContextOrNew(ctx),
	}
	return tx.WithContext(ctx).Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func ConvertToPlanUpdateMessage(record PlanUpdateRecord) config.PlanUpdateMessage {
	return config.PlanUpdateMessage{
		ID:                  record.ID,
		PlanId:              record.PlanId,
		OrderId:             record.OrderId,
		CustomerId:          record.CustomerId,
		Status:              string(record.Status),
		RemainingTermMonths: record.RemainingTermMonths,
		OutstandingAmount:   record.OutstandingAmount,
		MonthsRecorded:      record.MonthsRecorded,
		UpdatedAt:           record.UpdatedAt,
		CorrelationId:       record.CorrelationId,
	}
}
