package models

import (
	"context"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"gorm.io/gorm"
)

type VehicleModel struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Brand     *string   `gorm:"size:128" json:"brand"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type VehicleSerial struct {
	ID        int       `gorm:"primary_key" json:"id"`
	ModelId   int       `gorm:"index;not null" json:"model_id"`
	Serial    string    `gorm:"size:64;uniqueIndex;not null" json:"serial"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const vehicleNameCacheKey = "vehicleNames"

// VehicleNameCache maps model ids to display names for report labelling.
// It starts in a not-loaded state: Lookup returns false for everything until
// Load succeeds, so callers can tell "catalog unavailable" apart from
// "unknown model id" and fall back to the raw id.
type VehicleNameCache struct {
	db *gorm.DB

	mu     sync.RWMutex
	names  map[int]string
	loaded bool
}

func NewVehicleNameCache(db *gorm.DB) *VehicleNameCache {
	return &VehicleNameCache{db: db}
}

// Load populates the cache, preferring the redis copy and falling back to the
// catalog table. A failed load leaves the cache in its previous state.
func (c *VehicleNameCache) Load(ctx context.Context) error {
	cached := make(map[int]string)
	exists, err := config.GetRedisObject(vehicleNameCacheKey, &cached)
	if err == nil && exists && len(cached) > 0 {
		c.mu.Lock()
		c.names = cached
		c.loaded = true
		c.mu.Unlock()
		return nil
	}

	var rows []*VehicleModel
	if err := c.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return err
	}

	names := make(map[int]string, len(rows))
	for _, row := range rows {
		names[row.ID] = row.Name
	}

	if err := config.SetRedisObject(vehicleNameCacheKey, names, 10*time.Minute); err != nil {
		config.LogError(config.GetLogger(), "vehicle.go", "Load", "caching vehicle names", nil, err)
	}

	c.mu.Lock()
	c.names = names
	c.loaded = true
	c.mu.Unlock()
	return nil
}

// Lookup returns the model name. The second return is false both for unknown
// ids and while the cache has never been loaded.
func (c *VehicleNameCache) Lookup(modelId int) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return "", false
	}
	name, ok := c.names[modelId]
	return name, ok
}

// Loaded reports whether Load has ever succeeded.
func (c *VehicleNameCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}
