package service

import (
	"context"
	"errors"
	"testing"
	"time"

	sdomain "github.com/corvusHold/changenotify/internal/settings/domain"
	"github.com/corvusHold/changenotify/internal/settings/repository"
)

type failingRepo struct{}

func (failingRepo) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}
func (failingRepo) Upsert(context.Context, ...sdomain.Entry) error { return nil }

func TestService_Defaults(t *testing.T) {
	ctx := context.Background()
	r := repository.NewMemory()
	_ = r.Upsert(ctx,
		sdomain.Entry{Key: "blank", Value: "   "},
		sdomain.Entry{Key: "bad.int", Value: "x"},
		sdomain.Entry{Key: "bad.dur", Value: "soon"},
	)
	s := New(r)

	if v, err := s.GetString(ctx, "missing", "def"); err != nil || v != "def" {
		t.Fatalf("missing: got %q, %v", v, err)
	}
	if v, err := s.GetString(ctx, "blank", "def"); err != nil || v != "def" {
		t.Fatalf("blank: got %q, %v", v, err)
	}
	if v, err := s.GetInt(ctx, "bad.int", 7); err != nil || v != 7 {
		t.Fatalf("bad int: got %d, %v", v, err)
	}
	if v, err := s.GetDuration(ctx, "bad.dur", time.Second); err != nil || v != time.Second {
		t.Fatalf("bad duration: got %s, %v", v, err)
	}
}

func TestService_StoredValues(t *testing.T) {
	ctx := context.Background()
	r := repository.NewMemory()
	_ = r.Upsert(ctx,
		sdomain.Entry{Key: sdomain.KeyNotifyAdminSubject, Value: "  Profile changed  "},
		sdomain.Entry{Key: sdomain.KeyRLConfigPutLimit, Value: "3"},
		sdomain.Entry{Key: sdomain.KeyRLConfigPutWindow, Value: "10s"},
	)
	s := New(r)

	if v, _ := s.GetString(ctx, sdomain.KeyNotifyAdminSubject, "def"); v != "Profile changed" {
		t.Fatalf("expected trimmed subject, got %q", v)
	}
	if v, _ := s.GetInt(ctx, sdomain.KeyRLConfigPutLimit, 10); v != 3 {
		t.Fatalf("expected 3, got %d", v)
	}
	if v, _ := s.GetDuration(ctx, sdomain.KeyRLConfigPutWindow, time.Minute); v != 10*time.Second {
		t.Fatalf("expected 10s, got %s", v)
	}
}

func TestService_PropagatesRepositoryErrors(t *testing.T) {
	s := New(failingRepo{})
	v, err := s.GetString(context.Background(), sdomain.KeyNotifyAdminTo, "def")
	if err == nil {
		t.Fatal("expected repository error")
	}
	if v != "def" {
		t.Fatalf("expected default alongside error, got %q", v)
	}
}
