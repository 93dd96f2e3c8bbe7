package itinerary

import (
	"fmt"
	"strings"

	"tripplanner/internal/models"
)

// SourceFallback marks itineraries built by Fallback.
const SourceFallback = "fallback"

// Fallback builds a template itinerary from the trip alone. It never fails
// and always returns exactly trip.Days days (at least one).
func Fallback(trip models.Trip) *models.Content {
	dest := trip.PrimaryDestination()
	days := trip.Days
	if days < 1 {
		days = 1
	}
	pro := trip.Plan == models.PlanPro

	content := &models.Content{
		Days: make([]models.Day, 0, days),
		PopularSpots: []models.Spot{
			{
				Name:        dest + " Historic Center",
				Description: fmt.Sprintf("Explore the cultural heart of %s with stunning architecture dating back centuries.", dest),
			},
			{
				Name:        "Local Food Markets",
				Description: fmt.Sprintf("Experience authentic culinary traditions at %s's bustling local markets.", dest),
			},
		},
		Summary: fmt.Sprintf("This %d-day journey through %s is designed for %s travelers with a %s%s budget.",
			days, dest, strings.ToLower(trip.TravelerType), trip.CurrencySymbol, trip.BudgetString()),
	}

	for n := 1; n <= days; n++ {
		var day models.Day
		switch n {
		case 1:
			day = models.Day{
				Title:       "Welcome to " + dest,
				Description: fmt.Sprintf("Your adventure begins with an introduction to %s's rich cultural heritage.", dest),
				Activities: activities(
					fmt.Sprintf("Morning: Arrive in %s and check into accommodation", dest),
					"Afternoon: Orientation walk through the main historical area",
					"Evening: Welcome dinner at a traditional restaurant",
				),
				Tip: "Take time to absorb the local atmosphere and observe daily life patterns.",
			}
		case days:
			day = models.Day{
				Title:       "Final Explorations",
				Description: "Make the most of your last hours with final explorations.",
				Activities: activities(
					"Morning: Last-minute souvenir shopping at local markets",
					"Afternoon: Revisit your favorite spot",
					"Evening: Airport transfer and departure",
				),
				Tip: "Pack main luggage the night before to allow time for final observations.",
			}
		default:
			day = models.Day{
				Title:       fmt.Sprintf("Day %d Adventures", n),
				Description: fmt.Sprintf("Explore more of %s's unique character and traditions.", dest),
				Activities: activities(
					"Morning: Guided exploration of cultural sites",
					"Afternoon: Hands-on local experience",
					"Evening: Free time to wander and dine locally",
				),
				Tip: "Wear comfortable shoes and carry a refillable water bottle.",
			}
		}
		day.Day = n
		if pro {
			day.Location = dest
			day.Transportation = "Public transit passes and short taxi rides"
			day.Accommodation = "Well-reviewed central hotel in " + dest
			day.Dining = "Local restaurants recommended by residents"
			day.DailyBudget = trip.CurrencySymbol + formatAmount(trip.Budget/float64(days))
		}
		content.Days = append(content.Days, day)
	}

	if pro {
		content.BookingResources = &models.BookingResources{
			Flights:    "https://www.skyscanner.com",
			Hotels:     "https://www.booking.com",
			LocalTours: "https://www.viator.com",
		}
		content.BudgetBreakdown = &models.BudgetBreakdown{
			Accommodation:  trip.Share(0.4),
			Activities:     trip.Share(0.3),
			Food:           trip.Share(0.2),
			Transportation: trip.Share(0.1),
			TotalEstimated: trip.CurrencySymbol + trip.BudgetString(),
			MoneySavingStrategies: []string{
				"Book 2-3 months in advance",
				"Use credit card travel benefits",
				"Consider shoulder season travel",
			},
		}
	}
	return content
}

func activities(descriptions ...string) []models.Activity {
	out := make([]models.Activity, len(descriptions))
	for i, d := range descriptions {
		out[i] = models.Activity{Description: d}
	}
	return out
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%d", int64(v))
}
