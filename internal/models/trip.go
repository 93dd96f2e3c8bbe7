package models

import (
	"strconv"
	"time"
)

// Trip is a validated itinerary request, the input every generator gets.
type Trip struct {
	UserName       string
	Destinations   []string
	StartDate      time.Time
	EndDate        time.Time
	Days           int
	TravelerType   string
	Budget         float64
	CurrencySymbol string
	Interests      string
	Notes          string
	BudgetFriendly bool
	Plan           Plan
}

const DateLayout = "2006-01-02"

// Widths of the itineraries columns a trip is stored in. A destination is
// capped so the generated title fits its column.
const (
	MaxDestinationLen  = 100
	MaxTravelerTypeLen = 50
	MaxCurrencyLen     = 10
)

// PrimaryDestination is the first destination, used for titles.
func (t Trip) PrimaryDestination() string {
	if len(t.Destinations) == 0 {
		return "your destination"
	}
	return t.Destinations[0]
}

// BudgetString formats the budget without a trailing ".0".
func (t Trip) BudgetString() string {
	return strconv.FormatFloat(t.Budget, 'f', -1, 64)
}

// Share formats the given fraction of the budget, truncated to whole units.
func (t Trip) Share(fraction float64) string {
	return t.CurrencySymbol + strconv.FormatInt(int64(t.Budget*fraction), 10)
}
