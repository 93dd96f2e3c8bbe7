package gpt

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"tripplanner/internal/models"
)

var (
	fenceOpen   = regexp.MustCompile("```json\\s*")
	fenceAny    = regexp.MustCompile("```\\s*")
	daysObject  = regexp.MustCompile(`(?s)\{.*"days".*\}`)
	stringArray = regexp.MustCompile(`(?s)\[.*\]`)

	ErrUnparsable = errors.New("response is not valid itinerary JSON")
)

// StripFences removes markdown code fences around a model response.
func StripFences(text string) string {
	text = fenceOpen.ReplaceAllString(text, "")
	text = fenceAny.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ParseContent decodes a model response into itinerary content. It tries
// the whole (unfenced) text first, then the outermost object containing
// a "days" key.
func ParseContent(text string) (*models.Content, error) {
	text = StripFences(text)

	var content models.Content
	err := json.Unmarshal([]byte(text), &content)
	if err == nil {
		return &content, nil
	}

	match := daysObject.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	content = models.Content{}
	if err := json.Unmarshal([]byte(match), &content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	return &content, nil
}

// ParseInterests decodes a JSON array of strings, tolerating fences and
// surrounding prose.
func ParseInterests(text string) ([]string, error) {
	text = StripFences(text)

	var out []string
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return compact(out), nil
	}
	match := stringArray.FindString(text)
	if match == "" {
		return nil, errors.New("response is not a JSON array")
	}
	if err := json.Unmarshal([]byte(match), &out); err != nil {
		return nil, fmt.Errorf("decode interests: %w", err)
	}
	return compact(out), nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
