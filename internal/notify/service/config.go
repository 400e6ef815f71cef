package service

import (
	"context"
	"fmt"

	ndomain "github.com/corvusHold/changenotify/internal/notify/domain"
	sdomain "github.com/corvusHold/changenotify/internal/settings/domain"
)

var (
	_ ndomain.ConfigStore  = (*SettingsConfigStore)(nil)
	_ ndomain.ShopProvider = (*SettingsShopProvider)(nil)
)

// SettingsConfigStore reads the notification configuration from settings.
// Missing keys yield the defaults; nothing is written.
type SettingsConfigStore struct{ settings sdomain.Service }

func NewConfigStore(settings sdomain.Service) *SettingsConfigStore {
	return &SettingsConfigStore{settings: settings}
}

func (s *SettingsConfigStore) Get(ctx context.Context) (ndomain.Config, error) {
	def := ndomain.DefaultConfig()
	adminTo, err := s.settings.GetString(ctx, sdomain.KeyNotifyAdminTo, def.AdminTo)
	if err != nil {
		return ndomain.Config{}, fmt.Errorf("read %s: %w", sdomain.KeyNotifyAdminTo, err)
	}
	adminSubject, err := s.settings.GetString(ctx, sdomain.KeyNotifyAdminSubject, def.AdminSubject)
	if err != nil {
		return ndomain.Config{}, fmt.Errorf("read %s: %w", sdomain.KeyNotifyAdminSubject, err)
	}
	customerSubject, err := s.settings.GetString(ctx, sdomain.KeyNotifyCustomerSubject, def.CustomerSubject)
	if err != nil {
		return ndomain.Config{}, fmt.Errorf("read %s: %w", sdomain.KeyNotifyCustomerSubject, err)
	}
	return ndomain.Config{AdminTo: adminTo, AdminSubject: adminSubject, CustomerSubject: customerSubject}, nil
}

// SettingsShopProvider resolves the shop identity from settings, falling
// back to the configured defaults.
type SettingsShopProvider struct {
	settings sdomain.Service
	defaults ndomain.Shop
}

func NewShopProvider(settings sdomain.Service, defaults ndomain.Shop) *SettingsShopProvider {
	return &SettingsShopProvider{settings: settings, defaults: defaults}
}

func (p *SettingsShopProvider) Get(ctx context.Context) (ndomain.Shop, error) {
	addr, err := p.settings.GetString(ctx, sdomain.KeyShopEmail, p.defaults.FromAddress)
	if err != nil {
		return ndomain.Shop{}, fmt.Errorf("read %s: %w", sdomain.KeyShopEmail, err)
	}
	name, err := p.settings.GetString(ctx, sdomain.KeyShopName, p.defaults.FromName)
	if err != nil {
		return ndomain.Shop{}, fmt.Errorf("read %s: %w", sdomain.KeyShopName, err)
	}
	return ndomain.Shop{FromAddress: addr, FromName: name}, nil
}
