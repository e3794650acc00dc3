package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
)

type Customer struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Phone     *string   `gorm:"size:32;index" json:"phone"`
	Email     *string   `gorm:"size:255" json:"email"`
	Segment   *string   `gorm:"size:16" json:"segment"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Customer) Validate() error {
	if c.Name == "" {
		return errors.New("customer name is required")
	}
	if c.Phone != nil && *c.Phone != "" {
		if err := utils.ValidatePhoneNumber(*c.Phone, utils.CountryCode); err != nil {
			return errors.New("invalid phone number")
		}
	}
	if c.Email != nil && *c.Email != "" {
		if !utils.IsValidEmail(*c.Email) {
			return errors.New("invalid email address")
		}
	}
	return nil
}

func CreateCustomer(ctx context.Context, customer *Customer) error {
	if err := customer.Validate(); err != nil {
		return err
	}

	db := config.GetDB()
	return db.WithContext(ctx).Create(customer).Error
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	return utils.FetchSingleModel[Customer](ctx, id)
}

// UpdateCustomerSegment persists the segment label computed by the revenue
// aggregator so list views can filter without re-aggregating.
func UpdateCustomerSegment(ctx context.Context, customerId int, segment CustomerSegment) error {
	db := config.GetDB()
	value := string(segment)
	return db.WithContext(ctx).
		Model(&Customer{}).
		Where("id = ?", customerId).
		Update("segment", value).Error
}
