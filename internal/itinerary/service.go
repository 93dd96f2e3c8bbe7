package itinerary

import (
	"context"
	"errors"
	"strings"

	"tripplanner/internal/apperr"
	"tripplanner/internal/models"
	"tripplanner/internal/quota"
	"tripplanner/pkg/logger"
)

// ListLimit caps how many saved itineraries List returns.
const ListLimit = 50

type Store interface {
	CreateItinerary(ctx context.Context, it *models.Itinerary, usage *models.UsageRecord, window *models.UsageWindow) error
	ListItineraries(ctx context.Context, userID int64, limit int) ([]*models.Itinerary, error)
	GetItinerary(ctx context.Context, userID, id int64) (*models.Itinerary, error)
}

type InterestSuggester interface {
	SuggestInterests(ctx context.Context, destinations []string) ([]string, error)
}

type Service struct {
	store     Store
	quota     *quota.Tracker
	generator *Generator
	interests InterestSuggester
	logger    *logger.Logger
}

// NewService wires the handler. interests may be nil, in which case
// suggestions come from the static table only.
func NewService(store Store, tracker *quota.Tracker, generator *Generator, interests InterestSuggester, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:     store,
		quota:     tracker,
		generator: generator,
		interests: interests,
		logger:    log,
	}
}

type Result struct {
	Content           *models.Content
	ItineraryID       int64
	FreeUsesRemaining int
	Source            string
}

// Generate validates the request, enforces the free quota, produces content
// and stores it. Quota is checked before any generation work; the store
// re-checks it in the same transaction that records the usage.
func (s *Service) Generate(ctx context.Context, user *models.User, req Request) (*Result, error) {
	trip, err := req.Validate(user.Plan)
	if err != nil {
		return nil, err
	}

	if err := s.quota.Check(ctx, user); err != nil {
		return nil, err
	}

	content, source := s.generator.Generate(ctx, trip)

	it := &models.Itinerary{
		UserID:       user.ID,
		Title:        trip.PrimaryDestination() + " Itinerary",
		TravelerType: trip.TravelerType,
		Budget:       trip.Budget,
		Currency:     trip.CurrencySymbol,
		Interests:    trip.Interests,
		Notes:        trip.Notes,
		PlanUsed:     user.Plan,
		Source:       source,
		CreatedAt:    s.quota.Now(),
	}
	if err := it.SetDestinations(trip.Destinations); err != nil {
		return nil, apperr.Persistence(err)
	}
	if err := it.SetTravelDates(models.TravelDates{
		StartDate: trip.StartDate.Format(models.DateLayout),
		EndDate:   trip.EndDate.Format(models.DateLayout),
	}); err != nil {
		return nil, apperr.Persistence(err)
	}
	if err := it.SetContent(content); err != nil {
		return nil, apperr.Persistence(err)
	}

	var window *models.UsageWindow
	usage := s.quota.Record(user)
	if usage != nil {
		w := s.quota.Window()
		window = &w
	}

	if err := s.store.CreateItinerary(ctx, it, usage, window); err != nil {
		if errors.Is(err, apperr.ErrQuotaExceeded) {
			return nil, err
		}
		s.logger.Errorw("Failed to save itinerary", "user_id", user.ID, "error", err)
		if !errors.Is(err, apperr.ErrPersistence) {
			err = apperr.Persistence(err)
		}
		return nil, err
	}

	remaining, err := s.quota.Remaining(ctx, user)
	if err != nil {
		s.logger.Warnw("Failed to compute remaining uses", "user_id", user.ID, "error", err)
	}

	s.logger.Infow("Itinerary generated",
		"user_id", user.ID,
		"itinerary_id", it.ID,
		"plan", user.Plan,
		"source", source,
		"days", trip.Days,
	)

	return &Result{
		Content:           content,
		ItineraryID:       it.ID,
		FreeUsesRemaining: remaining,
		Source:            source,
	}, nil
}

// List returns the user's saved itineraries, newest first.
func (s *Service) List(ctx context.Context, user *models.User) ([]*models.Itinerary, error) {
	out, err := s.store.ListItineraries(ctx, user.ID, ListLimit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*models.Itinerary{}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, user *models.User, id int64) (*models.Itinerary, error) {
	return s.store.GetItinerary(ctx, user.ID, id)
}

// SuggestInterests asks the provider for interest categories and falls
// back to the static table on any failure.
func (s *Service) SuggestInterests(ctx context.Context, destinations []string) []string {
	cleaned := make([]string, 0, len(destinations))
	for _, d := range destinations {
		if d = strings.TrimSpace(d); d != "" {
			cleaned = append(cleaned, d)
		}
	}
	if len(cleaned) == 0 {
		return []string{}
	}

	if s.interests != nil {
		interests, err := s.interests.SuggestInterests(ctx, cleaned)
		if err == nil && len(interests) > 0 {
			return interests
		}
		if err == nil {
			err = errors.New("empty suggestion list")
		}
		s.logger.Warnw("Interest suggestions failed, using static list", "error", err)
	}
	return StaticInterests(cleaned)
}
