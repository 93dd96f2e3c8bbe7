package itinerary

import (
	"context"

	"tripplanner/internal/models"
	"tripplanner/pkg/logger"
)

// Provider produces itinerary content for a trip. Implementations return
// an error for anything unusable; the Generator moves on to the next tier.
type Provider interface {
	Name() string
	GenerateItinerary(ctx context.Context, trip models.Trip) (*models.Content, error)
}

// Generator runs the provider chain: the pro provider for pro trips, then
// the standard provider, then Fallback. Generate therefore never fails.
type Generator struct {
	standard Provider
	pro      Provider
	logger   *logger.Logger
}

// NewGenerator accepts nil providers; a nil tier is skipped.
func NewGenerator(standard, pro Provider, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.Nop()
	}
	return &Generator{standard: standard, pro: pro, logger: log}
}

func (g *Generator) chain(plan models.Plan) []Provider {
	var out []Provider
	if plan == models.PlanPro && g.pro != nil {
		out = append(out, g.pro)
	}
	if g.standard != nil {
		out = append(out, g.standard)
	}
	return out
}

// Generate returns the content and the name of the tier that produced it.
func (g *Generator) Generate(ctx context.Context, trip models.Trip) (*models.Content, string) {
	for _, p := range g.chain(trip.Plan) {
		content, err := p.GenerateItinerary(ctx, trip)
		if err == nil && content.Validate() == nil {
			return content, p.Name()
		}
		if err == nil {
			err = content.Validate()
		}
		g.logger.Warnw("Provider failed, trying next tier",
			"provider", p.Name(),
			"plan", trip.Plan,
			"error", err,
		)
		if ctx.Err() != nil {
			break
		}
	}
	g.logger.Infow("Using template itinerary", "plan", trip.Plan, "days", trip.Days)
	return Fallback(trip), SourceFallback
}
