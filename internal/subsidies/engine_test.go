package subsidies

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
	"github.com/SaiAnoop/aqua-harvestPro/internal/feasibility"
	"github.com/SaiAnoop/aqua-harvestPro/internal/repository"
)

func newLoadedEngine(t *testing.T) *Engine {
	t.Helper()

	engine, err := NewEngine(4)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	if err := engine.LoadSchemes(BuiltinSchemes()); err != nil {
		t.Fatalf("failed to load built-in schemes: %v", err)
	}
	return engine
}

func TestBuiltinSchemesCompile(t *testing.T) {
	engine := newLoadedEngine(t)

	if engine.SchemesCount() != 4 {
		t.Errorf("expected 4 schemes, got %d", engine.SchemesCount())
	}

	ids := []string{"amrut", "mgnrega", "pm-kusum", "tn-rwh"}
	for i, s := range engine.Schemes() {
		if s.ID != ids[i] {
			t.Errorf("expected scheme %s at %d, got %s", ids[i], i, s.ID)
		}
	}
}

func TestMatch(t *testing.T) {
	engine := newLoadedEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*domain.WizardInput)
		want   []domain.SubsidyMatch
	}{
		{
			name:   "demo residential in Tamil Nadu",
			mutate: func(in *domain.WizardInput) {},
			want: []domain.SubsidyMatch{
				{SchemeID: "tn-rwh", Amount: 25000},
			},
		},
		{
			name: "borewell household on a small budget",
			mutate: func(in *domain.WizardInput) {
				in.Requirements.CurrentSource = domain.SourceBorewell
			},
			want: []domain.SubsidyMatch{
				{SchemeID: "mgnrega", Amount: 50000},
				{SchemeID: "tn-rwh", Amount: 25000},
			},
		},
		{
			name: "institutional outside Tamil Nadu",
			mutate: func(in *domain.WizardInput) {
				in.Location.State = "kerala"
				in.Property.PropertyType = domain.PropertyInstitutional
			},
			want: []domain.SubsidyMatch{
				{SchemeID: "amrut", Amount: 17500},
				{SchemeID: "pm-kusum", Amount: 15000},
			},
		},
		{
			name: "residential elsewhere on municipal supply",
			mutate: func(in *domain.WizardInput) {
				in.Location.State = "gujarat"
			},
			want: nil,
		},
		{
			name: "budget above MGNREGA ceiling",
			mutate: func(in *domain.WizardInput) {
				in.Location.State = "gujarat"
				in.Requirements.CurrentSource = domain.SourceTanker
				in.Requirements.Budget = 50001
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := feasibility.DemoInput()
			tt.mutate(&input)
			result := feasibility.Estimate(input)

			got := engine.Match(ctx, input, result)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d matches, got %d: %+v", len(tt.want), len(got), got)
			}
			for i := range tt.want {
				if got[i].SchemeID != tt.want[i].SchemeID || got[i].Amount != tt.want[i].Amount {
					t.Errorf("match %d: expected %s/%d, got %s/%d",
						i, tt.want[i].SchemeID, tt.want[i].Amount, got[i].SchemeID, got[i].Amount)
				}
			}
		})
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		cost    int64
		percent float64
		max     int64
		want    int64
	}{
		{50000, 50, 25000, 25000},
		{40000, 50, 25000, 20000},
		{50000, 100, 75000, 50000},
		{1000000, 100, 75000, 75000},
		{12345, 35, 200000, 4321}, // 4320.75 rounds up
		{3, 50, 10, 2},            // 1.5 rounds up
		{0, 30, 150000, 0},
	}

	for _, tt := range tests {
		if got := Amount(tt.cost, tt.percent, tt.max); got != tt.want {
			t.Errorf("Amount(%d, %v, %d) = %d, want %d", tt.cost, tt.percent, tt.max, got, tt.want)
		}
	}
}

func TestValidateScheme(t *testing.T) {
	engine, _ := NewEngine(1)
	defer engine.Close()

	valid := &domain.SubsidyScheme{
		ID: "roof", Percent: 10, MaxAmount: 1000,
		Eligibility: "roof_area >= 100 && floors > 1", Enabled: true,
	}
	if err := engine.ValidateScheme(valid); err != nil {
		t.Errorf("expected valid scheme, got %v", err)
	}
	if engine.SchemesCount() != 0 {
		t.Error("ValidateScheme must not load the scheme")
	}

	invalid := []*domain.SubsidyScheme{
		nil,
		{ID: "", Percent: 10, MaxAmount: 1, Eligibility: "true"},
		{ID: "syntax", Percent: 10, MaxAmount: 1, Eligibility: "this is not CEL !!!"},
		{ID: "non-bool", Percent: 10, MaxAmount: 1, Eligibility: "roof_area * 2.0"},
		{ID: "unknown-var", Percent: 10, MaxAmount: 1, Eligibility: "pool_size > 3"},
		{ID: "zero-percent", Percent: 0, MaxAmount: 1, Eligibility: "true"},
		{ID: "over-percent", Percent: 120, MaxAmount: 1, Eligibility: "true"},
		{ID: "no-cap", Percent: 10, MaxAmount: 0, Eligibility: "true"},
	}
	for _, s := range invalid {
		if err := engine.ValidateScheme(s); !errors.Is(err, ErrInvalidScheme) {
			t.Errorf("expected ErrInvalidScheme for %+v, got %v", s, err)
		}
	}
}

func TestCrossTypeComparison(t *testing.T) {
	engine, _ := NewEngine(1)
	defer engine.Close()

	scheme := &domain.SubsidyScheme{
		ID: "big-roof", Name: "Big roof", Percent: 10, MaxAmount: 100000,
		Eligibility: "roof_area > 150 && estimated_cost >= 50000.0 && score >= 80",
		Enabled:     true,
	}
	if err := engine.LoadScheme(scheme); err != nil {
		t.Fatalf("LoadScheme failed: %v", err)
	}

	input := feasibility.DemoInput()
	matches := engine.Match(context.Background(), input, feasibility.Estimate(input))
	if len(matches) != 1 || matches[0].Amount != 5000 {
		t.Errorf("expected one 5000 match, got %+v", matches)
	}
}

func TestReloadSchemes(t *testing.T) {
	engine := newLoadedEngine(t)

	only := []*domain.SubsidyScheme{
		{ID: "everyone", Name: "Everyone", Percent: 10, MaxAmount: 1000, Eligibility: "true", Enabled: true},
		{ID: "disabled", Name: "Disabled", Percent: 10, MaxAmount: 1000, Eligibility: "true", Enabled: false},
	}
	if err := engine.ReloadSchemes(only); err != nil {
		t.Fatalf("ReloadSchemes failed: %v", err)
	}
	if engine.SchemesCount() != 1 {
		t.Errorf("expected 1 scheme after reload, got %d", engine.SchemesCount())
	}

	broken := []*domain.SubsidyScheme{
		{ID: "ok", Percent: 10, MaxAmount: 1000, Eligibility: "true", Enabled: true},
		{ID: "bad", Percent: 10, MaxAmount: 1000, Eligibility: "((", Enabled: true},
	}
	if err := engine.ReloadSchemes(broken); err == nil {
		t.Fatal("expected reload error")
	}
	if engine.SchemesCount() != 1 || engine.Schemes()[0].ID != "everyone" {
		t.Error("failed reload must keep the previous schemes")
	}
}

func TestUnloadScheme(t *testing.T) {
	engine := newLoadedEngine(t)
	input := feasibility.DemoInput()
	result := feasibility.Estimate(input)

	if _, ok := engine.Scheme("tn-rwh"); !ok {
		t.Fatal("expected tn-rwh to be loaded")
	}

	if !engine.UnloadScheme("tn-rwh") {
		t.Error("expected UnloadScheme to report a loaded scheme")
	}
	if engine.UnloadScheme("tn-rwh") {
		t.Error("expected second UnloadScheme to report nothing removed")
	}
	if _, ok := engine.Scheme("tn-rwh"); ok {
		t.Error("expected tn-rwh to be gone")
	}

	for _, m := range engine.Match(context.Background(), input, result) {
		if m.SchemeID == "tn-rwh" {
			t.Errorf("unloaded scheme still matched: %+v", m)
		}
	}
	if engine.SchemesCount() != 3 {
		t.Errorf("expected 3 schemes, got %d", engine.SchemesCount())
	}
}

func TestEnsureSchemes(t *testing.T) {
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "subsidies.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	schemes, err := EnsureSchemes(ctx, repo)
	if err != nil {
		t.Fatalf("EnsureSchemes failed: %v", err)
	}
	if len(schemes) != 4 {
		t.Fatalf("expected 4 seeded schemes, got %d", len(schemes))
	}

	custom := &domain.SubsidyScheme{
		ID: "custom", Name: "Custom", Authority: "City", Percent: 5, MaxAmount: 500,
		Eligibility: "true", Enabled: true,
	}
	if err := repo.SaveSubsidyScheme(ctx, custom); err != nil {
		t.Fatalf("SaveSubsidyScheme failed: %v", err)
	}

	schemes, err = EnsureSchemes(ctx, repo)
	if err != nil {
		t.Fatalf("EnsureSchemes failed: %v", err)
	}
	if len(schemes) != 5 {
		t.Errorf("expected existing schemes to be kept, got %d", len(schemes))
	}
}
