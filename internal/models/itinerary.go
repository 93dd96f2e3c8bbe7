package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Itinerary is one generated trip plan. The JSON columns are kept as raw
// bytes and accessed through the getter/setter pairs below.
type Itinerary struct {
	ID               int64
	UserID           int64
	Title            string
	DestinationsJSON []byte
	TravelDatesJSON  []byte
	TravelerType     string
	Budget           float64
	Currency         string
	Interests        string
	Notes            string
	ContentJSON      []byte
	PlanUsed         Plan
	Source           string
	CreatedAt        time.Time
}

type TravelDates struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (it *Itinerary) SetDestinations(destinations []string) error {
	if destinations == nil {
		destinations = []string{}
	}
	b, err := json.Marshal(destinations)
	if err != nil {
		return fmt.Errorf("encode destinations: %w", err)
	}
	it.DestinationsJSON = b
	return nil
}

func (it *Itinerary) Destinations() ([]string, error) {
	out := []string{}
	if len(it.DestinationsJSON) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(it.DestinationsJSON, &out); err != nil {
		return nil, fmt.Errorf("decode destinations: %w", err)
	}
	return out, nil
}

func (it *Itinerary) SetTravelDates(dates TravelDates) error {
	b, err := json.Marshal(dates)
	if err != nil {
		return fmt.Errorf("encode travel dates: %w", err)
	}
	it.TravelDatesJSON = b
	return nil
}

func (it *Itinerary) TravelDates() (TravelDates, error) {
	var out TravelDates
	if len(it.TravelDatesJSON) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(it.TravelDatesJSON, &out); err != nil {
		return TravelDates{}, fmt.Errorf("decode travel dates: %w", err)
	}
	return out, nil
}

func (it *Itinerary) SetContent(content *Content) error {
	b, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode itinerary content: %w", err)
	}
	it.ContentJSON = b
	return nil
}

func (it *Itinerary) Content() (*Content, error) {
	out := &Content{}
	if len(it.ContentJSON) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(it.ContentJSON, out); err != nil {
		return nil, fmt.Errorf("decode itinerary content: %w", err)
	}
	return out, nil
}

// MarshalJSON inlines the stored JSON columns instead of base64 blobs.
func (it Itinerary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID           int64           `json:"id"`
		Title        string          `json:"title"`
		Destinations json.RawMessage `json:"destinations"`
		TravelDates  json.RawMessage `json:"travel_dates"`
		TravelerType string          `json:"traveler_type"`
		Budget       float64         `json:"budget"`
		Currency     string          `json:"currency"`
		Interests    string          `json:"interests,omitempty"`
		Notes        string          `json:"notes,omitempty"`
		Itinerary    json.RawMessage `json:"itinerary"`
		PlanUsed     Plan            `json:"plan_used"`
		Source       string          `json:"source,omitempty"`
		CreatedAt    time.Time       `json:"created_at"`
	}{
		ID:           it.ID,
		Title:        it.Title,
		Destinations: rawOr(it.DestinationsJSON, "[]"),
		TravelDates:  rawOr(it.TravelDatesJSON, "{}"),
		TravelerType: it.TravelerType,
		Budget:       it.Budget,
		Currency:     it.Currency,
		Interests:    it.Interests,
		Notes:        it.Notes,
		Itinerary:    rawOr(it.ContentJSON, "{}"),
		PlanUsed:     it.PlanUsed,
		Source:       it.Source,
		CreatedAt:    it.CreatedAt,
	})
}

func rawOr(b []byte, fallback string) json.RawMessage {
	if len(bytes.TrimSpace(b)) == 0 {
		return json.RawMessage(fallback)
	}
	return json.RawMessage(b)
}

// Content is the generated itinerary body returned to clients.
type Content struct {
	Days             []Day             `json:"days"`
	PopularSpots     []Spot            `json:"popularSpots"`
	Summary          string            `json:"summary"`
	BookingResources *BookingResources `json:"bookingResources,omitempty"`
	BudgetBreakdown  *BudgetBreakdown  `json:"budgetBreakdown,omitempty"`
}

type Day struct {
	Day            int        `json:"day"`
	Location       string     `json:"location,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Activities     []Activity `json:"activities"`
	Transportation string     `json:"transportation,omitempty"`
	Accommodation  string     `json:"accommodation,omitempty"`
	Dining         string     `json:"dining,omitempty"`
	DailyBudget    string     `json:"dailyBudget,omitempty"`
	Tip            string     `json:"tip"`
}

// Activity is a plain string in standard itineraries and an object in pro
// ones. It marshals back to a string when only Description is set.
type Activity struct {
	Time           string `json:"time,omitempty"`
	Description    string `json:"description"`
	Duration       string `json:"duration,omitempty"`
	Cost           string `json:"cost,omitempty"`
	BookingLink    string `json:"bookingLink,omitempty"`
	MoneySavingTip string `json:"moneySavingTip,omitempty"`
}

type activityObject Activity

func (a Activity) MarshalJSON() ([]byte, error) {
	if a.Time == "" && a.Duration == "" && a.Cost == "" && a.BookingLink == "" && a.MoneySavingTip == "" {
		return json.Marshal(a.Description)
	}
	return json.Marshal(activityObject(a))
}

func (a *Activity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Activity{Description: s}
		return nil
	}
	var obj activityObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*a = Activity(obj)
	return nil
}

type Spot struct {
	Name            string `json:"name"`
	Location        string `json:"location,omitempty"`
	Description     string `json:"description"`
	BestTimeToVisit string `json:"bestTimeToVisit,omitempty"`
	EntranceFee     string `json:"entranceFee,omitempty"`
	BookingLink     string `json:"bookingLink,omitempty"`
	MoneySavingTip  string `json:"moneySavingTip,omitempty"`
}

type BookingResources struct {
	Flights    string `json:"flights"`
	Hotels     string `json:"hotels"`
	LocalTours string `json:"localTours"`
}

type BudgetBreakdown struct {
	Accommodation         string   `json:"accommodation"`
	Activities            string   `json:"activities"`
	Food                  string   `json:"food"`
	Transportation        string   `json:"transportation"`
	TotalEstimated        string   `json:"totalEstimated"`
	MoneySavingStrategies []string `json:"moneySavingStrategies,omitempty"`
}

var ErrNoDays = errors.New("itinerary has no days")

// Validate reports why a generated itinerary is unusable, or nil.
func (c *Content) Validate() error {
	if c == nil || len(c.Days) == 0 {
		return ErrNoDays
	}
	for i, d := range c.Days {
		switch {
		case d.Title == "":
			return fmt.Errorf("day %d: missing title", i+1)
		case d.Description == "":
			return fmt.Errorf("day %d: missing description", i+1)
		case len(d.Activities) == 0:
			return fmt.Errorf("day %d: missing activities", i+1)
		case d.Tip == "":
			return fmt.Errorf("day %d: missing tip", i+1)
		}
	}
	return nil
}

// ValidatePro additionally requires the pro-only sections.
func (c *Content) ValidatePro() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.BookingResources == nil {
		return errors.New("missing bookingResources")
	}
	if c.BudgetBreakdown == nil {
		return errors.New("missing budgetBreakdown")
	}
	return nil
}
