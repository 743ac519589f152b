package data

import (
	"sync"

	"gorm.io/gorm"
)

// Setting is one row of the settings table. Only active rows are loaded.
type Setting struct {
	ID     uint   `gorm:"primaryKey"`
	Name   string `gorm:"size:64;not null;uniqueIndex"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null;default:1"`
}

var (
	settingsCache map[string]string
	settingsMu    sync.RWMutex
)

// LoadSettings loads all active settings from the database into cache.
func LoadSettings(db *gorm.DB) error {
	var settings []Setting
	if err := db.Where("active = ?", 1).Find(&settings).Error; err != nil {
		return err
	}

	cache := make(map[string]string, len(settings))
	for _, s := range settings {
		cache[s.Name] = s.Value
	}
	ReplaceSettings(cache)
	return nil
}

// ReplaceSettings swaps the cached settings wholesale.
func ReplaceSettings(values map[string]string) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	settingsCache = values
}

// Settings returns a copy of every cached setting.
func Settings() map[string]string {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	out := make(map[string]string, len(settingsCache))
	for k, v := range settingsCache {
		out[k] = v
	}
	return out
}
