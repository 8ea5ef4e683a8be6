package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marketconnect/llm-council/app/domain/entities"
	"gorm.io/gorm"
	"k8s.io/klog/v2"
)

// Registry stores provider configuration and usage counters.
type Registry struct {
	db *gorm.DB
}

// NewRegistry wraps an initialized gorm handle.
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// Seed inserts every provider whose name is not yet registered. Existing rows
// are left untouched so keys set at runtime survive restarts.
func (r *Registry) Seed(ctx context.Context, providers []entities.Provider) error {
	for i := range providers {
		p := providers[i]
		res := r.db.WithContext(ctx).Where("name = ?", p.Name).FirstOrCreate(&p)
		if res.Error != nil {
			return fmt.Errorf("failed to seed provider %s: %w", p.Name, res.Error)
		}
		if res.RowsAffected > 0 {
			klog.V(4).Infof("provider seeded: name=%s, kind=%s, model=%s", p.Name, p.Kind, p.Model)
		}
	}
	return nil
}

// List returns all providers by priority.
func (r *Registry) List(ctx context.Context) ([]*entities.Provider, error) {
	var providers []*entities.Provider
	err := r.db.WithContext(ctx).
		Order("priority ASC, id ASC").
		Find(&providers).Error
	return providers, err
}

// Enabled returns providers that are enabled and hold an API key.
func (r *Registry) Enabled(ctx context.Context) ([]*entities.Provider, error) {
	var providers []*entities.Provider
	err := r.db.WithContext(ctx).
		Where("enabled = ? AND api_key <> ''", true).
		Order("priority ASC, id ASC").
		Find(&providers).Error
	return providers, err
}

// Get returns the provider called name.
func (r *Registry) Get(ctx context.Context, name string) (*entities.Provider, error) {
	var p entities.Provider
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", name, entities.ErrProviderNotFound)
		}
		return nil, err
	}
	return &p, nil
}

// Upsert creates p or replaces the configuration of the provider with the
// same name. Usage counters are preserved. An empty APIKey keeps the stored key.
func (r *Registry) Upsert(ctx context.Context, p *entities.Provider) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entities.Provider
		err := tx.Where("name = ?", p.Name).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(p).Error
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"kind":        p.Kind,
			"base_url":    p.BaseURL,
			"model":       p.Model,
			"max_tokens":  p.MaxTokens,
			"temperature": p.Temperature,
			"weight":      p.Weight,
			"enabled":     p.Enabled,
			"priority":    p.Priority,
		}
		if p.APIKey != "" {
			updates["api_key"] = p.APIKey
		}
		if err := tx.Model(&existing).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(p, existing.ID).Error
	})
}

// SetAPIKey stores key for name, registering an enabled provider with
// defaults when the name is unknown.
func (r *Registry) SetAPIKey(ctx context.Context, name, key string) (*entities.Provider, error) {
	p, err := r.Get(ctx, name)
	if errors.Is(err, entities.ErrProviderNotFound) {
		created := NewDefaultProvider(name)
		created.APIKey = key
		if err := r.db.WithContext(ctx).Create(&created).Error; err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", name, err)
		}
		klog.Infof("provider registered via API key: name=%s, kind=%s", name, created.Kind)
		return &created, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Model(p).Update("api_key", key).Error; err != nil {
		return nil, fmt.Errorf("failed to update API key for %s: %w", name, err)
	}
	p.APIKey = key
	klog.Infof("provider API key updated: name=%s, key=%s", name, p.MaskAPIKey())
	return p, nil
}

// SetEnabled toggles a provider.
func (r *Registry) SetEnabled(ctx context.Context, name string, enabled bool) error {
	res := r.db.WithContext(ctx).
		Model(&entities.Provider{}).
		Where("name = ?", name).
		Update("enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", name, entities.ErrProviderNotFound)
	}
	return nil
}

// RecordRequest bumps the request counter, and the error counter when failed.
func (r *Registry) RecordRequest(ctx context.Context, name string, failed bool) error {
	errorInc := 0
	if failed {
		errorInc = 1
	}
	return r.db.WithContext(ctx).
		Model(&entities.Provider{}).
		Where("name = ?", name).
		Updates(map[string]interface{}{
			"request_count": gorm.Expr("request_count + ?", 1),
			"error_count":   gorm.Expr("error_count + ?", errorInc),
			"last_used_at":  time.Now(),
		}).Error
}
