package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	sdomain "github.com/corvusHold/changenotify/internal/settings/domain"
)

var _ sdomain.Service = (*Service)(nil)

type Service struct{ repo sdomain.Repository }

func New(repo sdomain.Repository) *Service { return &Service{repo: repo} }

func (s *Service) GetString(ctx context.Context, key string, def string) (string, error) {
	v, ok, err := s.lookup(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}

func (s *Service) GetDuration(ctx context.Context, key string, def time.Duration) (time.Duration, error) {
	v, ok, err := s.lookup(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, nil
	}
	return d, nil
}

func (s *Service) GetInt(ctx context.Context, key string, def int) (int, error) {
	v, ok, err := s.lookup(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, nil
	}
	return n, nil
}

// lookup treats blank values as absent.
func (s *Service) lookup(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.repo.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	v = strings.TrimSpace(v)
	return v, v != "", nil
}
