package regions

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/SaiAnoop/aqua-harvestPro/internal/bus"
	"github.com/SaiAnoop/aqua-harvestPro/internal/cache"
	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
	"github.com/SaiAnoop/aqua-harvestPro/internal/feasibility"
	"github.com/SaiAnoop/aqua-harvestPro/internal/repository"
)

func setupService(t *testing.T) (*Service, domain.Cache, *bus.ChannelBus) {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "regions.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	c := cache.NewLRUCache(100)
	b := bus.NewChannelBus(10)
	t.Cleanup(func() { b.Close() })

	return NewService(repo, c, b, time.Minute), c, b
}

func TestResolve(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	tests := []struct {
		code     string
		rainfall float64
		tariff   float64
		known    bool
		name     string
	}{
		{"kerala", 2800, 12, true, "Kerala"},
		{"tamil-nadu", 1200, 15, true, "Tamil Nadu"},
		{"rajasthan", 650, 25, true, "Rajasthan"},
		{"atlantis", 1000, 18, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			region, err := svc.Resolve(ctx, tt.code)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if region.RainfallMM != tt.rainfall || region.TariffPer1000L != tt.tariff {
				t.Errorf("expected %.0f/%.0f, got %.0f/%.0f", tt.rainfall, tt.tariff, region.RainfallMM, region.TariffPer1000L)
			}
			if region.Known != tt.known {
				t.Errorf("expected Known=%v, got %v", tt.known, region.Known)
			}
			if region.Name != tt.name {
				t.Errorf("expected name %q, got %q", tt.name, region.Name)
			}
			if region.Overridden {
				t.Error("built-in region should not be overridden")
			}
		})
	}
}

func TestResolveCaches(t *testing.T) {
	svc, c, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Resolve(ctx, "gujarat"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	cached, err := c.GetRegion(ctx, "gujarat")
	if err != nil {
		t.Fatalf("GetRegion failed: %v", err)
	}
	if cached == nil || cached.RainfallMM != 850 {
		t.Errorf("expected gujarat to be cached, got %+v", cached)
	}
}

func TestOverrideAndReset(t *testing.T) {
	svc, _, b := setupService(t)
	ctx := context.Background()

	updates := make(chan domain.Region, 4)
	_, err := b.Subscribe(ctx, domain.TopicRegionUpdated, func(ctx context.Context, msg *domain.Message) error {
		var r domain.Region
		if err := json.Unmarshal(msg.Payload, &r); err != nil {
			return err
		}
		updates <- r
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	// Warm the cache with the built-in value first.
	if _, err := svc.Resolve(ctx, "tamil-nadu"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	saved, err := svc.Override(ctx, domain.Region{Code: "tamil-nadu", RainfallMM: 900, TariffPer1000L: 30})
	if err != nil {
		t.Fatalf("Override failed: %v", err)
	}
	if !saved.Overridden || !saved.Known || saved.Name != "Tamil Nadu" {
		t.Errorf("unexpected override result: %+v", saved)
	}

	t.Run("ResolveSeesOverride", func(t *testing.T) {
		region, _ := svc.Resolve(ctx, "tamil-nadu")
		if region.RainfallMM != 900 || region.TariffPer1000L != 30 {
			t.Errorf("expected override values, got %+v", region)
		}
	})

	t.Run("TablesSeeOverride", func(t *testing.T) {
		tables, region, err := svc.Tables(ctx, "tamil-nadu")
		if err != nil {
			t.Fatalf("Tables failed: %v", err)
		}
		if !region.Overridden {
			t.Error("expected overridden region")
		}

		result := tables.Estimate(feasibility.DemoInput())
		if result.Factors.Rainfall.Description != "900mm annual average" {
			t.Errorf("estimator did not see override: %s", result.Factors.Rainfall.Description)
		}
		if tables.RainfallFor("kerala") != 2800 {
			t.Error("override leaked into other regions")
		}
	})

	t.Run("PublishesUpdate", func(t *testing.T) {
		select {
		case r := <-updates:
			if r.Code != "tamil-nadu" || r.RainfallMM != 900 {
				t.Errorf("unexpected update: %+v", r)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for region update")
		}
	})

	t.Run("ListIncludesOverride", func(t *testing.T) {
		if _, err := svc.Override(ctx, domain.Region{Code: "goa", Name: "Goa", RainfallMM: 3000, TariffPer1000L: 10}); err != nil {
			t.Fatalf("Override failed: %v", err)
		}

		list, err := svc.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 9 {
			t.Fatalf("expected 9 regions, got %d", len(list))
		}
		for i := 1; i < len(list); i++ {
			if list[i-1].Code >= list[i].Code {
				t.Fatalf("list not sorted at %d: %s, %s", i, list[i-1].Code, list[i].Code)
			}
		}
		for _, r := range list {
			if r.Code == "tamil-nadu" && r.RainfallMM != 900 {
				t.Errorf("expected merged override in list, got %+v", r)
			}
		}
	})

	t.Run("Reset", func(t *testing.T) {
		region, err := svc.Reset(ctx, "tamil-nadu")
		if err != nil {
			t.Fatalf("Reset failed: %v", err)
		}
		if region.RainfallMM != 1200 || region.Overridden {
			t.Errorf("expected built-in value after reset, got %+v", region)
		}

		resolved, _ := svc.Resolve(ctx, "tamil-nadu")
		if resolved.RainfallMM != 1200 {
			t.Errorf("expected cache refreshed after reset, got %+v", resolved)
		}

		if _, err := svc.Reset(ctx, "tamil-nadu"); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second reset, got %v", err)
		}
	})
}

func TestOverrideValidation(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	tests := []domain.Region{
		{Code: "", RainfallMM: 100, TariffPer1000L: 1},
		{Code: "kerala", RainfallMM: 0, TariffPer1000L: 1},
		{Code: "kerala", RainfallMM: 100, TariffPer1000L: 0},
	}
	for _, region := range tests {
		if _, err := svc.Override(ctx, region); !errors.Is(err, ErrInvalidRegion) {
			t.Errorf("expected ErrInvalidRegion for %+v, got %v", region, err)
		}
	}
}

func TestSources(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	src, err := svc.Sources(ctx, "karnataka")
	if err != nil {
		t.Fatalf("Sources failed: %v", err)
	}

	if src.Region != "karnataka" {
		t.Errorf("expected region karnataka, got %s", src.Region)
	}
	if src.Rainfall.Source != "IMD (Indian Meteorological Department)" || src.Rainfall.Value != 1150 {
		t.Errorf("unexpected rainfall source: %+v", src.Rainfall)
	}
	if src.Rainfall.LastUpdated != "2024-01-15" {
		t.Errorf("unexpected rainfall date: %s", src.Rainfall.LastUpdated)
	}
	if src.Groundwater.Source != "CGWB (Central Ground Water Board)" || src.Groundwater.Status != "Safe to moderate exploitation" {
		t.Errorf("unexpected groundwater source: %+v", src.Groundwater)
	}
	if src.WaterRates.Source != "Local Water Authority" || src.WaterRates.Value != 18 {
		t.Errorf("unexpected water rates source: %+v", src.WaterRates)
	}
}

func TestRegionJSONOmitsUnsetTimestamp(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	builtin, err := svc.Resolve(ctx, "gujarat")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	data, _ := json.Marshal(builtin)
	var fields map[string]any
	json.Unmarshal(data, &fields)
	if _, ok := fields["updatedAt"]; ok {
		t.Errorf("built-in region should not carry updatedAt: %s", data)
	}

	overridden, err := svc.Override(ctx, domain.Region{Code: "gujarat", RainfallMM: 900, TariffPer1000L: 21})
	if err != nil {
		t.Fatalf("Override failed: %v", err)
	}
	data, _ = json.Marshal(overridden)
	fields = nil
	json.Unmarshal(data, &fields)
	if _, ok := fields["updatedAt"]; !ok {
		t.Errorf("overridden region should carry updatedAt: %s", data)
	}
}

type failingRepo struct {
	domain.Repository
}

func (failingRepo) GetRegion(ctx context.Context, code string) (*domain.Region, error) {
	return nil, errors.New("database unavailable")
}

func TestResolveDegradesOnRepositoryError(t *testing.T) {
	c := cache.NewLRUCache(10)
	svc := NewService(failingRepo{}, c, nil, time.Minute)
	ctx := context.Background()

	region, err := svc.Resolve(ctx, "kerala")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if region.RainfallMM != 2800 {
		t.Errorf("expected built-in fallback, got %+v", region)
	}

	if cached, _ := c.GetRegion(ctx, "kerala"); cached != nil {
		t.Error("fallback result should not be cached")
	}
}

func TestWatchAppliesRemoteUpdates(t *testing.T) {
	svc, _, b := setupService(t)
	ctx := context.Background()

	// A second instance without its own repository shares the bus.
	remote := NewService(nil, cache.NewLRUCache(100), b, time.Minute)
	sub, err := remote.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer sub.Unsubscribe()

	if _, err := svc.Override(ctx, domain.Region{Code: "kerala", RainfallMM: 3300, TariffPer1000L: 14}); err != nil {
		t.Fatalf("Override failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		region, err := remote.Resolve(ctx, "kerala")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if region.Overridden && region.RainfallMM == 3300 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("remote instance never saw the override, got %+v", region)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatchRequiresBus(t *testing.T) {
	svc := NewService(nil, nil, nil, time.Minute)
	if _, err := svc.Watch(context.Background()); err == nil {
		t.Error("expected error without an event bus")
	}
}
