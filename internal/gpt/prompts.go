package gpt

import (
	"fmt"
	"strings"

	"tripplanner/internal/models"
)

const (
	standardSystemPrompt = "You are a professional travel planner. You MUST respond with ONLY valid JSON, " +
		"no markdown, no explanations, no code blocks. Just pure JSON."

	proSystemPrompt = "You are an expert travel planner for premium clients. Create highly detailed, " +
		"comprehensive itineraries with booking links and budget optimization tips. " +
		"Respond with ONLY valid JSON, no markdown."

	interestsSystemPrompt = "You are a travel expert. Respond with ONLY a JSON array of strings, no other text."
)

func tripDetails(trip models.Trip) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TRIP DETAILS:\n")
	fmt.Fprintf(&b, "- Traveler: %s (%s)\n", trip.UserName, trip.TravelerType)
	fmt.Fprintf(&b, "- Destinations: %s\n", strings.Join(trip.Destinations, ", "))
	fmt.Fprintf(&b, "- Dates: %s to %s\n", trip.StartDate.Format(models.DateLayout), trip.EndDate.Format(models.DateLayout))
	fmt.Fprintf(&b, "- Budget: %s%s\n", trip.CurrencySymbol, trip.BudgetString())
	interests := trip.Interests
	if interests == "" {
		interests = "General sightseeing"
	}
	fmt.Fprintf(&b, "- Interests: %s\n", interests)
	if trip.Notes != "" {
		fmt.Fprintf(&b, "- Special Notes: %s\n", trip.Notes)
	}
	if trip.BudgetFriendly {
		b.WriteString("- Preference: budget-friendly options, include money-saving tips\n")
	}
	return b.String()
}

func standardPrompt(trip models.Trip) string {
	return fmt.Sprintf(`Create a comprehensive %d-day travel itinerary for:

%s
Respond with ONLY this JSON structure (no markdown, no explanations):

{
  "days": [
    {
      "day": 1,
      "title": "Day Title",
      "description": "Day overview",
      "activities": [
        "Morning: Activity details",
        "Afternoon: Activity details",
        "Evening: Activity details"
      ],
      "tip": "Practical travel tip"
    }
  ],
  "popularSpots": [
    {
      "name": "Spot Name",
      "description": "Detailed description"
    }
  ],
  "summary": "Trip overview"
}

Create exactly %d days with detailed activities.`, trip.Days, tripDetails(trip), trip.Days)
}

func proPrompt(trip models.Trip) string {
	cur := trip.CurrencySymbol
	destinations := strings.Join(trip.Destinations, ", ")
	return fmt.Sprintf(`Create a comprehensive %[1]d-day PRO travel itinerary with:

%[2]s
RESPOND WITH THIS JSON STRUCTURE:
{
  "days": [
    {
      "day": 1,
      "location": "City Name",
      "title": "Day Title",
      "description": "Overview",
      "activities": [
        {
          "time": "Morning (8:00-12:00)",
          "description": "Activity description",
          "duration": "2-3 hours",
          "cost": "%[3]s50-100",
          "bookingLink": "https://www.viator.com",
          "moneySavingTip": "Tip here"
        }
      ],
      "transportation": "Transport details",
      "accommodation": "Hotel recommendations",
      "dining": "Restaurant recommendations",
      "dailyBudget": "%[3]s200-300",
      "tip": "Pro tip"
    }
  ],
  "popularSpots": [
    {
      "name": "Spot Name",
      "location": "City Name",
      "description": "Description",
      "bestTimeToVisit": "Morning",
      "entranceFee": "%[3]s20",
      "bookingLink": "https://www.viator.com",
      "moneySavingTip": "Saving tip"
    }
  ],
  "bookingResources": {
    "flights": "https://www.skyscanner.com",
    "hotels": "https://www.booking.com",
    "localTours": "https://www.viator.com"
  },
  "budgetBreakdown": {
    "accommodation": "%[4]s",
    "activities": "%[5]s",
    "food": "%[6]s",
    "transportation": "%[7]s",
    "totalEstimated": "%[3]s%[8]s",
    "moneySavingStrategies": ["Strategy 1", "Strategy 2"]
  },
  "summary": "Overview covering all destinations"
}

Create exactly %[1]d days across destinations: %[9]s`,
		trip.Days, tripDetails(trip), cur,
		trip.Share(0.4), trip.Share(0.3), trip.Share(0.2), trip.Share(0.1),
		trip.BudgetString(), destinations)
}

func interestsPrompt(destinations []string) string {
	return fmt.Sprintf(`Based on these travel destinations: %s

Suggest 12-15 most relevant travel interest categories that would appeal to various types of travelers.
Return ONLY a JSON array of strings, no explanations.

Example: ["Historical Sites", "Local Cuisine", "Adventure Sports", "Art Museums", "Beach Activities", "Nightlife"]

Focus on interests that are most relevant to the specific destinations mentioned.`, strings.Join(destinations, ", "))
}
