package research

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mikeboe/deep-research/pkg/jsonparse"
)

// Alias tables for fields the models name inconsistently. Order is priority.
var (
	queryAliases       = []string{"search_query", "searchQuery", "query", "text", "q"}
	sectionNameAliases = []string{"name", "title"}
)

const untitledSection = "Untitled section"

// extractQueries normalizes a decoded model reply into search queries.
// Accepted shapes: an array, an object with a "queries" (or other non-empty)
// array field, or a single bare object or string.
func extractQueries(v any) []SearchQuery {
	var items []any
	shape := jsonparse.Classify(v, "queries", nil)
	switch shape.Kind {
	case jsonparse.Array, jsonparse.ObjectWithArrayField:
		items = shape.Items
	default:
		switch val := v.(type) {
		case string:
			items = []any{val}
		case map[string]any:
			if _, ok := jsonparse.FirstString(val, queryAliases); ok {
				items = []any{val}
			}
		}
	}

	var out []SearchQuery
	for _, item := range items {
		q := strings.TrimSpace(jsonparse.ItemText(item, queryAliases))
		if q != "" {
			out = append(out, SearchQuery{SearchQuery: q})
		}
	}
	return out
}

// looksLikeSections accepts arrays whose first item is an object with a
// string name, title or description. It only gates fields other than
// "sections"; an explicit "sections" array is always taken.
func looksLikeSections(items []any) bool {
	if len(items) == 0 {
		return false
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return false
	}
	for _, key := range []string{"name", "title", "description"} {
		if _, ok := first[key].(string); ok {
			return true
		}
	}
	return false
}

// extractSections normalizes a decoded model reply into report sections.
func extractSections(v any) []Section {
	var items []any
	shape := jsonparse.Classify(v, "sections", looksLikeSections)
	switch shape.Kind {
	case jsonparse.Array, jsonparse.ObjectWithArrayField:
		items = shape.Items
	default:
		if m, ok := v.(map[string]any); ok {
			if _, named := jsonparse.FirstString(m, sectionNameAliases); named {
				items = []any{m}
			}
		}
	}

	out := make([]Section, 0, len(items))
	for _, item := range items {
		switch val := item.(type) {
		case map[string]any:
			out = append(out, normalizeSection(val))
		case string:
			out = append(out, normalizeSection(map[string]any{"name": val}))
		default:
			out = append(out, normalizeSection(nil))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeSection(m map[string]any) Section {
	name, ok := jsonparse.FirstString(m, sectionNameAliases)
	if !ok {
		name = untitledSection
	}
	name = strings.TrimSpace(name)

	s := Section{
		Name:        name,
		Description: fmt.Sprintf("Information about %s", name),
		Plan:        fmt.Sprintf("Collect information about %s", name),
		Research:    true,
	}
	if d, ok := jsonparse.FirstString(m, []string{"description"}); ok {
		s.Description = d
	}
	if p, ok := jsonparse.FirstString(m, []string{"plan"}); ok {
		s.Plan = p
	}
	if c, ok := m["content"].(string); ok {
		s.Content = c
	}
	if r, present := m["research"]; present {
		s.Research = truthy(r)
	}
	return s
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "", "false", "no", "0":
			return false
		}
		return true
	}
	return true
}

// extractContent pulls section prose out of a writer reply. In priority
// order: an object's "content" field, the first array item's
// "content" field, the whole array as indented JSON, else the raw reply.
func extractContent(reply string) string {
	v, err := jsonparse.Parse(reply)
	if err != nil {
		return reply
	}

	switch val := v.(type) {
	case map[string]any:
		if c, ok := val["content"].(string); ok && c != "" {
			return c
		}
	case []any:
		if len(val) > 0 {
			if first, ok := val[0].(map[string]any); ok {
				if c, ok := first["content"].(string); ok && c != "" {
					return c
				}
			}
		}
		b, err := json.MarshalIndent(val, "", "  ")
		if err == nil {
			return string(b)
		}
	}
	return reply
}
