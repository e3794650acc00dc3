package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
)

type DealerStaff struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Phone     *string   `gorm:"size:32" json:"phone"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetDealerStaff(ctx context.Context, id int) (*DealerStaff, error) {
	return utils.FetchSingleModel[DealerStaff](ctx, id)
}

// FetchDealerStaffNames returns id -> name for report labelling.
func FetchDealerStaffNames(ctx context.Context) (map[int]string, error) {
	db := config.GetDB()
	var rows []*DealerStaff
	if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}

	names := make(map[int]string, len(rows))
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}
