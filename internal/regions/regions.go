// Package regions resolves the rainfall and tariff reference values for a
// region code, layering stored overrides over the built-in tables.
package regions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
	"github.com/SaiAnoop/aqua-harvestPro/internal/feasibility"
	"github.com/SaiAnoop/aqua-harvestPro/internal/repository"
)

// ErrInvalidRegion is returned for overrides that cannot be stored.
var ErrInvalidRegion = errors.New("invalid region")

// Provenance of the reference values, shown alongside results.
const (
	rainfallSource    = "IMD (Indian Meteorological Department)"
	rainfallUpdated   = "2024-01-15"
	groundwaterSource = "CGWB (Central Ground Water Board)"
	groundwaterUpdate = "2024-01-10"
	groundwaterStatus = "Safe to moderate exploitation"
	tariffSource      = "Local Water Authority"
	tariffUpdated     = "2024-01-01"
)

// Service resolves regions through cache, repository and built-in table,
// in that order.
type Service struct {
	repo     domain.Repository
	cache    domain.Cache
	eventBus domain.EventBus
	ttl      time.Duration
}

// NewService creates a new regions service. cache and eventBus may be nil.
func NewService(repo domain.Repository, cache domain.Cache, eventBus domain.EventBus, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		eventBus: eventBus,
		ttl:      ttl,
	}
}

// Resolve returns the effective reference row for code. Unknown codes
// resolve to the default rainfall and tariff with Known=false.
func (s *Service) Resolve(ctx context.Context, code string) (domain.Region, error) {
	if s.cache != nil {
		cached, err := s.cache.GetRegion(ctx, code)
		if err != nil {
			slog.Debug("region cache read failed", "region", code, "error", err)
		} else if cached != nil {
			return *cached, nil
		}
	}

	region, persisted := s.lookup(ctx, code)

	if persisted && s.cache != nil {
		if err := s.cache.SetRegion(ctx, &region, s.ttl); err != nil {
			slog.Debug("region cache write failed", "region", code, "error", err)
		}
	}
	return region, nil
}

// lookup reads the override if any. persisted is false when the
// repository could not be consulted, so the result is not cached.
func (s *Service) lookup(ctx context.Context, code string) (domain.Region, bool) {
	builtin := feasibility.DefaultTables().Region(code)
	if s.repo == nil || code == "" {
		return builtin, true
	}

	stored, err := s.repo.GetRegion(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return builtin, true
	}
	if err != nil {
		slog.Warn("region override lookup failed, using built-in table",
			"region", code,
			"error", err,
		)
		return builtin, false
	}

	return merge(builtin, stored), true
}

// Tables returns reference tables in which code resolves to its effective
// values, together with the resolved row.
func (s *Service) Tables(ctx context.Context, code string) (feasibility.Tables, domain.Region, error) {
	region, err := s.Resolve(ctx, code)
	if err != nil {
		return feasibility.Tables{}, domain.Region{}, err
	}

	tables := feasibility.DefaultTables()
	if region.Overridden {
		tables = tables.With(code, region.RainfallMM, region.TariffPer1000L)
	}
	return tables, region, nil
}

// List returns every built-in region merged with stored overrides, sorted
// by code.
func (s *Service) List(ctx context.Context) ([]domain.Region, error) {
	byCode := make(map[string]domain.Region)
	for _, code := range feasibility.DefaultTables().Codes() {
		byCode[code] = feasibility.DefaultTables().Region(code)
	}

	if s.repo != nil {
		stored, err := s.repo.ListRegions(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list region overrides: %w", err)
		}
		for _, r := range stored {
			byCode[r.Code] = merge(feasibility.DefaultTables().Region(r.Code), r)
		}
	}

	out := make([]domain.Region, 0, len(byCode))
	for _, r := range byCode {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Override stores reference values for a region and refreshes the cache.
func (s *Service) Override(ctx context.Context, region domain.Region) (domain.Region, error) {
	if region.Code == "" {
		return domain.Region{}, fmt.Errorf("%w: code is required", ErrInvalidRegion)
	}
	if region.RainfallMM <= 0 {
		return domain.Region{}, fmt.Errorf("%w: rainfall must be positive", ErrInvalidRegion)
	}
	if region.TariffPer1000L <= 0 {
		return domain.Region{}, fmt.Errorf("%w: tariff must be positive", ErrInvalidRegion)
	}
	if s.repo == nil {
		return domain.Region{}, errors.New("no repository configured")
	}
	if region.Name == "" {
		region.Name = feasibility.RegionName(region.Code)
	}

	if err := s.repo.SaveRegion(ctx, &region); err != nil {
		return domain.Region{}, fmt.Errorf("failed to save region: %w", err)
	}

	resolved := merge(feasibility.DefaultTables().Region(region.Code), &region)
	s.refresh(ctx, resolved)
	return resolved, nil
}

// Reset removes a stored override so the code resolves from the built-in
// table again. Returns repository.ErrNotFound when there is no override.
func (s *Service) Reset(ctx context.Context, code string) (domain.Region, error) {
	if s.repo == nil {
		return domain.Region{}, errors.New("no repository configured")
	}
	if err := s.repo.DeleteRegion(ctx, code); err != nil {
		return domain.Region{}, fmt.Errorf("failed to reset region %s: %w", code, err)
	}

	resolved := feasibility.DefaultTables().Region(code)
	s.refresh(ctx, resolved)
	return resolved, nil
}

// Sources describes where the reference values for code come from.
func (s *Service) Sources(ctx context.Context, code string) (domain.DataSources, error) {
	region, err := s.Resolve(ctx, code)
	if err != nil {
		return domain.DataSources{}, err
	}

	rates := domain.DataSourceValue{
		Source:      tariffSource,
		LastUpdated: tariffUpdated,
		Value:       region.TariffPer1000L,
	}
	rainfall := domain.DataSourceValue{
		Source:      rainfallSource,
		LastUpdated: rainfallUpdated,
		Value:       region.RainfallMM,
	}
	if region.Overridden {
		updated := region.UpdatedAt.UTC().Format("2006-01-02")
		rainfall.Source, rainfall.LastUpdated = "Operator override", updated
		rates.Source, rates.LastUpdated = "Operator override", updated
	}

	return domain.DataSources{
		Region:   code,
		Rainfall: rainfall,
		Groundwater: domain.DataSourceText{
			Source:      groundwaterSource,
			LastUpdated: groundwaterUpdate,
			Status:      groundwaterStatus,
		},
		WaterRates: rates,
	}, nil
}

// refresh writes the new value through the cache and announces the change.
func (s *Service) refresh(ctx context.Context, region domain.Region) {
	if s.cache != nil {
		if err := s.cache.SetRegion(ctx, &region, s.ttl); err != nil {
			slog.Warn("failed to refresh region cache", "region", region.Code, "error", err)
		}
	}

	if s.eventBus == nil {
		return
	}
	payload, err := json.Marshal(region)
	if err != nil {
		return
	}
	if err := s.eventBus.Publish(ctx, domain.TopicRegionUpdated, payload); err != nil {
		slog.Warn("failed to publish region update", "region", region.Code, "error", err)
	}
}

// Watch applies region updates published by other instances to the local
// cache.
func (s *Service) Watch(ctx context.Context) (domain.Subscription, error) {
	if s.eventBus == nil {
		return nil, errors.New("no event bus configured")
	}

	return s.eventBus.Subscribe(ctx, domain.TopicRegionUpdated, func(ctx context.Context, msg *domain.Message) error {
		var region domain.Region
		if err := json.Unmarshal(msg.Payload, &region); err != nil {
			return fmt.Errorf("failed to decode region update: %w", err)
		}
		if s.cache == nil || region.Code == "" {
			return nil
		}
		if err := s.cache.SetRegion(ctx, &region, s.ttl); err != nil {
			return fmt.Errorf("failed to apply region update: %w", err)
		}
		slog.Debug("region update applied", "region", region.Code, "message_id", msg.ID)
		return nil
	})
}

func merge(builtin domain.Region, stored *domain.Region) domain.Region {
	out := *stored
	if out.Name == "" {
		out.Name = builtin.Name
	}
	out.Known = true
	out.Overridden = true
	return out
}
