package store

import (
	"errors"
	"testing"
)

func TestSettingRepository_SetAndGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if err := repo.Set("last_procedure_id", "4"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := repo.Get("last_procedure_id")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "4" {
		t.Errorf("Get() = %q, want %q", got, "4")
	}

	t.Run("set replaces previous value", func(t *testing.T) {
		if err := repo.Set("last_procedure_id", "1"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := repo.Get("last_procedure_id")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != "1" {
			t.Errorf("Get() = %q, want %q", got, "1")
		}
	})
}

func TestSettingRepository_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Settings().Get("never_set")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
