package webhook

import (
	"encoding/json"
	"fmt"
	"sort"

	"example.com/stravasync/internal/domain"
)

// fieldDecoder maps one provider update key onto a stored activity field.
type fieldDecoder struct {
	column string
	apply  func(a *domain.Activity, raw json.RawMessage) error
}

// updateFields is the closed set of fields a webhook update may change. Keys not listed
// here are ignored.
var updateFields = map[string]fieldDecoder{
	"title":          {column: "name", apply: stringField(func(a *domain.Activity, v string) { a.Name = v })},
	"type":           {column: "sport_type", apply: stringField(func(a *domain.Activity, v string) { a.SportType = v })},
	"sport_type":     {column: "sport_type", apply: stringField(func(a *domain.Activity, v string) { a.SportType = v })},
	"gear_id":        {column: "gear_id", apply: stringField(func(a *domain.Activity, v string) { a.GearID = v })},
	"private":        {column: "private", apply: boolField(func(a *domain.Activity, v bool) { a.Private = v })},
	"trainer":        {column: "trainer", apply: boolField(func(a *domain.Activity, v bool) { a.Trainer = v })},
	"commute":        {column: "commute", apply: boolField(func(a *domain.Activity, v bool) { a.Commute = v })},
	"flagged":        {column: "flagged", apply: boolField(func(a *domain.Activity, v bool) { a.Flagged = v })},
	"hide_from_home": {column: "hide_from_home", apply: boolField(func(a *domain.Activity, v bool) { a.HideFromHome = v })},
}

// ApplyUpdates decodes every known key of updates onto a and returns the keys it
// ignored. A malformed value for a known key fails the whole update and leaves a
// untouched.
func ApplyUpdates(a *domain.Activity, updates map[string]json.RawMessage) ([]string, error) {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	next := *a
	var ignored []string
	for _, key := range keys {
		decoder, ok := updateFields[key]
		if !ok {
			ignored = append(ignored, key)
			continue
		}
		if err := decoder.apply(&next, updates[key]); err != nil {
			return nil, fmt.Errorf("update %q -> %s: %w", key, decoder.column, err)
		}
	}
	*a = next
	return ignored, nil
}

func stringField(set func(*domain.Activity, string)) func(*domain.Activity, json.RawMessage) error {
	return func(a *domain.Activity, raw json.RawMessage) error {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		set(a, v)
		return nil
	}
}

// boolField accepts a JSON boolean or the literal strings "true" and "false", which is
// how the provider encodes flags in webhook payloads.
func boolField(set func(*domain.Activity, bool)) func(*domain.Activity, json.RawMessage) error {
	return func(a *domain.Activity, raw json.RawMessage) error {
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			set(a, b)
			return nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		switch s {
		case "true":
			set(a, true)
		case "false":
			set(a, false)
		default:
			return fmt.Errorf("not a boolean: %q", s)
		}
		return nil
	}
}
