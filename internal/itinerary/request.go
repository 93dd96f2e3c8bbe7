// Package itinerary turns trip requests into stored itineraries.
package itinerary

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"tripplanner/internal/apperr"
	"tripplanner/internal/models"
)

// MaxTripDays bounds the inclusive length of one itinerary.
const MaxTripDays = 60

// Request is the body of POST /generate-itinerary.
type Request struct {
	UserName       string     `json:"userName"`
	Destinations   []string   `json:"destinations"`
	StartDate      string     `json:"startDate"`
	EndDate        string     `json:"endDate"`
	TravelerType   string     `json:"travelerType"`
	Budget         FlexNumber `json:"budget"`
	CurrencySymbol string     `json:"currencySymbol"`
	Interests      string     `json:"interests"`
	Notes          string     `json:"notes"`
	BudgetFriendly bool       `json:"budgetFriendly"`
}

// FlexNumber accepts either a JSON number or a numeric string.
type FlexNumber string

func (n *FlexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*n = ""
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*n = FlexNumber(strings.TrimSpace(str))
	default:
		*n = FlexNumber(s)
	}
	return nil
}

// Validate checks required fields in a fixed order and returns the trip
// every generator works from.
func (r *Request) Validate(plan models.Plan) (models.Trip, error) {
	destinations := make([]string, 0, len(r.Destinations))
	for _, d := range r.Destinations {
		if d = strings.TrimSpace(d); d != "" {
			destinations = append(destinations, d)
		}
	}

	budget, budgetErr := strconv.ParseFloat(string(r.Budget), 64)
	switch {
	case strings.TrimSpace(r.UserName) == "":
		return models.Trip{}, apperr.Missing("userName")
	case len(destinations) == 0:
		return models.Trip{}, apperr.Missing("destinations")
	case strings.TrimSpace(r.StartDate) == "":
		return models.Trip{}, apperr.Missing("startDate")
	case strings.TrimSpace(r.EndDate) == "":
		return models.Trip{}, apperr.Missing("endDate")
	case strings.TrimSpace(r.TravelerType) == "":
		return models.Trip{}, apperr.Missing("travelerType")
	case r.Budget == "" || (budgetErr == nil && budget == 0):
		return models.Trip{}, apperr.Missing("budget")
	case budgetErr != nil, math.IsNaN(budget), math.IsInf(budget, 0):
		return models.Trip{}, apperr.Invalid("budget", "budget must be a number")
	case budget < 0:
		return models.Trip{}, apperr.Invalid("budget", "budget must be positive")
	}
	for _, d := range destinations {
		if utf8.RuneCountInString(d) > models.MaxDestinationLen {
			return models.Trip{}, apperr.TooLong("destinations", models.MaxDestinationLen)
		}
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.TravelerType)) > models.MaxTravelerTypeLen {
		return models.Trip{}, apperr.TooLong("travelerType", models.MaxTravelerTypeLen)
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.CurrencySymbol)) > models.MaxCurrencyLen {
		return models.Trip{}, apperr.TooLong("currencySymbol", models.MaxCurrencyLen)
	}

	start, err := time.Parse(models.DateLayout, strings.TrimSpace(r.StartDate))
	if err != nil {
		return models.Trip{}, &apperr.DateFormatError{Field: "startDate", Value: r.StartDate}
	}
	end, err := time.Parse(models.DateLayout, strings.TrimSpace(r.EndDate))
	if err != nil {
		return models.Trip{}, &apperr.DateFormatError{Field: "endDate", Value: r.EndDate}
	}
	if end.Before(start) {
		return models.Trip{}, apperr.Invalid("endDate", "endDate must not be before startDate")
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > MaxTripDays {
		return models.Trip{}, apperr.Invalid("endDate", "trips are limited to %d days", MaxTripDays)
	}

	currency := strings.TrimSpace(r.CurrencySymbol)
	if currency == "" {
		currency = "$"
	}

	return models.Trip{
		UserName:       strings.TrimSpace(r.UserName),
		Destinations:   destinations,
		StartDate:      start,
		EndDate:        end,
		Days:           days,
		TravelerType:   strings.TrimSpace(r.TravelerType),
		Budget:         budget,
		CurrencySymbol: currency,
		Interests:      strings.TrimSpace(r.Interests),
		Notes:          strings.TrimSpace(r.Notes),
		BudgetFriendly: r.BudgetFriendly,
		Plan:           plan,
	}, nil
}
