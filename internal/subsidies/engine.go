// Package subsidies matches an assessed property against government
// subsidy schemes whose eligibility is written in CEL.
package subsidies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
)

// ErrInvalidScheme is returned for schemes that cannot be loaded.
var ErrInvalidScheme = errors.New("invalid subsidy scheme")

// Engine evaluates scheme eligibility with compiled CEL programs.
type Engine struct {
	mu         sync.RWMutex
	env        *cel.Env
	compiled   map[string]*CompiledScheme
	maxWorkers int
}

// CompiledScheme holds a pre-compiled eligibility program.
type CompiledScheme struct {
	Scheme  *domain.SubsidyScheme
	Program cel.Program
}

// NewEngine creates a new eligibility engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	env, err := cel.NewEnv(
		cel.CrossTypeNumericComparisons(true),
		// Intake record
		cel.Variable("state", cel.StringType),
		cel.Variable("city", cel.StringType),
		cel.Variable("property_type", cel.StringType),
		cel.Variable("roof_area", cel.DoubleType),
		cel.Variable("open_space", cel.DoubleType),
		cel.Variable("floors", cel.IntType),
		cel.Variable("water_demand", cel.DoubleType),
		cel.Variable("current_source", cel.StringType),
		cel.Variable("budget", cel.DoubleType),
		// Feasibility result
		cel.Variable("score", cel.IntType),
		cel.Variable("estimated_cost", cel.IntType),
		cel.Variable("annual_harvest", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:        env,
		compiled:   make(map[string]*CompiledScheme),
		maxWorkers: maxWorkers,
	}, nil
}

// ValidateScheme compiles and checks a scheme without loading it.
func (e *Engine) ValidateScheme(scheme *domain.SubsidyScheme) error {
	if scheme == nil {
		return fmt.Errorf("%w: scheme is required", ErrInvalidScheme)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compile(scheme)
	return err
}

// LoadScheme compiles and loads a scheme, replacing any with the same ID.
func (e *Engine) LoadScheme(scheme *domain.SubsidyScheme) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compile(scheme)
	if err != nil {
		return err
	}

	e.compiled[scheme.ID] = compiled
	return nil
}

// UnloadScheme removes a scheme from evaluation. It reports whether the
// scheme was loaded.
func (e *Engine) UnloadScheme(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.compiled[id]
	delete(e.compiled, id)
	return ok
}

// Scheme returns a loaded scheme by ID.
func (e *Engine) Scheme(id string) (*domain.SubsidyScheme, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cs, ok := e.compiled[id]
	if !ok {
		return nil, false
	}
	return cs.Scheme, true
}

// LoadSchemes loads every enabled scheme.
func (e *Engine) LoadSchemes(schemes []*domain.SubsidyScheme) error {
	for _, s := range schemes {
		if !s.Enabled {
			continue
		}
		if err := e.LoadScheme(s); err != nil {
			return err
		}
	}
	return nil
}

// ReloadSchemes atomically replaces the loaded set. On error the previous
// set stays in place.
func (e *Engine) ReloadSchemes(schemes []*domain.SubsidyScheme) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]*CompiledScheme, len(schemes))
	for _, s := range schemes {
		if !s.Enabled {
			continue
		}
		compiled, err := e.compile(s)
		if err != nil {
			return err
		}
		next[s.ID] = compiled
	}

	e.compiled = next
	return nil
}

// Match returns the schemes input qualifies for, largest amount first.
// A scheme whose expression fails to evaluate is treated as not matching.
func (e *Engine) Match(ctx context.Context, input domain.WizardInput, result domain.FeasibilityResult) []domain.SubsidyMatch {
	e.mu.RLock()
	schemes := make([]*CompiledScheme, 0, len(e.compiled))
	for _, s := range e.compiled {
		schemes = append(schemes, s)
	}
	e.mu.RUnlock()

	if len(schemes) == 0 {
		return nil
	}

	activation := map[string]any{
		"state":          input.Location.State,
		"city":           input.Location.City,
		"property_type":  string(input.Property.PropertyType),
		"roof_area":      input.Property.RoofArea,
		"open_space":     input.Property.OpenSpace,
		"floors":         int64(input.Property.Floors),
		"water_demand":   input.Requirements.WaterDemand,
		"current_source": string(input.Requirements.CurrentSource),
		"budget":         input.Requirements.Budget,
		"score":          int64(result.Score),
		"estimated_cost": result.Recommendations.EstimatedCost,
		"annual_harvest": result.Recommendations.AnnualHarvest,
	}

	eligible := make([]bool, len(schemes))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, s := range schemes {
		wg.Add(1)
		go func(idx int, cs *CompiledScheme) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			eligible[idx] = e.evaluate(ctx, cs, activation)
		}(i, s)
	}
	wg.Wait()

	var matches []domain.SubsidyMatch
	for i, s := range schemes {
		if !eligible[i] {
			continue
		}
		matches = append(matches, domain.SubsidyMatch{
			SchemeID:  s.Scheme.ID,
			Name:      s.Scheme.Name,
			Authority: s.Scheme.Authority,
			Percent:   s.Scheme.Percent,
			Amount:    Amount(result.Recommendations.EstimatedCost, s.Scheme.Percent, s.Scheme.MaxAmount),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Amount != matches[j].Amount {
			return matches[i].Amount > matches[j].Amount
		}
		return matches[i].SchemeID < matches[j].SchemeID
	})
	return matches
}

// Amount is the subsidy payable on cost: percent of it, rounded, capped
// at maxAmount.
func Amount(cost int64, percent float64, maxAmount int64) int64 {
	amount := int64(math.Floor(float64(cost)*percent/100 + 0.5))
	if amount > maxAmount {
		return maxAmount
	}
	if amount < 0 {
		return 0
	}
	return amount
}

func (e *Engine) evaluate(ctx context.Context, cs *CompiledScheme, activation map[string]any) bool {
	out, _, err := cs.Program.ContextEval(ctx, activation)
	if err != nil {
		slog.Debug("subsidy eligibility evaluation failed",
			"scheme", cs.Scheme.ID,
			"error", err,
		)
		return false
	}
	v, ok := out.(types.Bool)
	return ok && bool(v)
}

// SchemesCount returns the number of loaded schemes.
func (e *Engine) SchemesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Schemes returns the loaded schemes ordered by ID.
func (e *Engine) Schemes() []*domain.SubsidyScheme {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.SubsidyScheme, 0, len(e.compiled))
	for _, cs := range e.compiled {
		out = append(out, cs.Scheme)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*CompiledScheme)
	return nil
}

func (e *Engine) compile(s *domain.SubsidyScheme) (*CompiledScheme, error) {
	if s.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidScheme)
	}
	if s.Percent <= 0 || s.Percent > 100 {
		return nil, fmt.Errorf("%w: scheme %s: percent must be in (0, 100]", ErrInvalidScheme, s.ID)
	}
	if s.MaxAmount <= 0 {
		return nil, fmt.Errorf("%w: scheme %s: maxAmount must be positive", ErrInvalidScheme, s.ID)
	}

	ast, issues := e.env.Compile(s.Eligibility)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: failed to compile scheme %s: %w", ErrInvalidScheme, s.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("%w: scheme %s: eligibility must return bool, got %s", ErrInvalidScheme, s.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, fmt.Errorf("failed to create program for scheme %s: %w", s.ID, err)
	}

	return &CompiledScheme{
		Scheme:  s,
		Program: program,
	}, nil
}
