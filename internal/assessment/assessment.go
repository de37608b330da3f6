// Package assessment runs the full pipeline for one intake record:
// validation, region resolution, estimation and subsidy matching.
package assessment

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
	"github.com/SaiAnoop/aqua-harvestPro/internal/feasibility"
	"github.com/SaiAnoop/aqua-harvestPro/internal/regions"
	"github.com/SaiAnoop/aqua-harvestPro/internal/subsidies"
	"github.com/SaiAnoop/aqua-harvestPro/internal/validation"
)

var tracer = otel.Tracer("aquaharvest-assessment")

// Service produces assessments. It holds no per-request state and is safe
// for concurrent use.
type Service struct {
	validator *validation.Validator
	regions   *regions.Service
	subsidies *subsidies.Engine
	eventBus  domain.EventBus
}

// NewService creates an assessment service. eventBus may be nil.
func NewService(v *validation.Validator, r *regions.Service, s *subsidies.Engine, eventBus domain.EventBus) *Service {
	return &Service{
		validator: v,
		regions:   r,
		subsidies: s,
		eventBus:  eventBus,
	}
}

// Assess validates input and produces its assessment. Invalid input
// returns validation.FieldErrors.
func (s *Service) Assess(ctx context.Context, input domain.WizardInput) (*domain.Assessment, error) {
	ctx, span := tracer.Start(ctx, "assessment.Assess")
	defer span.End()

	start := time.Now()

	if errs := s.validator.Validate(input); errs != nil {
		span.SetStatus(codes.Error, "invalid input")
		return nil, errs
	}

	regionStart := time.Now()
	tables, region, err := s.regions.Tables(ctx, input.Location.State)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	regionMs := time.Since(regionStart).Milliseconds()

	estimateStart := time.Now()
	result := tables.Estimate(input)
	estimateMs := time.Since(estimateStart).Milliseconds()

	subsidyStart := time.Now()
	matches := s.subsidies.Match(ctx, input, result)
	subsidyMs := time.Since(subsidyStart).Milliseconds()

	a := &domain.Assessment{
		ID:        uuid.New().String(),
		Input:     input,
		Result:    result,
		Region:    region,
		Subsidies: matches,
		Metadata: domain.AssessmentMetadata{
			RegionMs:         regionMs,
			EstimateMs:       estimateMs,
			SubsidyMs:        subsidyMs,
			SchemesChecked:   s.subsidies.SchemesCount(),
			EstimatorVersion: feasibility.Version,
		},
	}
	if a.Subsidies == nil {
		a.Subsidies = []domain.SubsidyMatch{}
	}
	a.NetCost = max(0, result.Recommendations.EstimatedCost-a.BestSubsidy())

	if sc := span.SpanContext(); sc.TraceID().IsValid() {
		a.Metadata.TraceID = sc.TraceID().String()
	}
	a.Metadata.TotalMs = time.Since(start).Milliseconds()

	span.SetAttributes(
		attribute.String("assessment.id", a.ID),
		attribute.String("region.code", region.Code),
		attribute.Int("feasibility.score", result.Score),
		attribute.String("feasibility.grade", string(result.Grade)),
		attribute.Int("subsidies.matched", len(matches)),
	)

	s.publish(ctx, a)

	return a, nil
}

// Demo assesses the built-in sample record.
func (s *Service) Demo(ctx context.Context) (*domain.Assessment, error) {
	return s.Assess(ctx, feasibility.DemoInput())
}

// publish announces a completed assessment. Failures are logged only.
func (s *Service) publish(ctx context.Context, a *domain.Assessment) {
	if s.eventBus == nil {
		return
	}

	payload, err := json.Marshal(a)
	if err != nil {
		slog.Warn("failed to encode assessment event", "assessment_id", a.ID, "error", err)
		return
	}
	if err := s.eventBus.Publish(ctx, domain.TopicAssessmentCompleted, payload); err != nil {
		slog.Warn("failed to publish assessment event",
			"assessment_id", a.ID,
			"error", err,
		)
	}
}
