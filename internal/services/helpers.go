package services

import (
	"context"
	"strings"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// ListOptions controls pagination and free-text search for admin listings.
type ListOptions struct {
	Page    int
	PerPage int
	Search  string
}

// Normalised returns opts with the page defaults and limits applied, matching
// what the list methods use.
func (o ListOptions) Normalised() ListOptions {
	o.Page, o.PerPage = normalisePage(o.Page, o.PerPage)
	o.Search = strings.TrimSpace(o.Search)
	return o
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func normalisePage(page, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 || perPage > maxPerPage {
		perPage = defaultPerPage
	}
	return page, perPage
}

// likeEscape is the escape character paired with likePattern. A backslash would
// need different quoting on MySQL and Postgres.
const likeEscape = "!"

var likeReplacer = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

// likePattern builds a case-insensitive substring pattern for a "LIKE ? ESCAPE '!'"
// clause. Wildcards in search match literally.
func likePattern(search string) string {
	return "%" + likeReplacer.Replace(strings.ToLower(strings.TrimSpace(search))) + "%"
}

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func normaliseDomains(values []string) []string {
	lowered := make([]string, 0, len(values))
	for _, value := range values {
		lowered = append(lowered, strings.ToLower(value))
	}
	return normaliseIDs(lowered)
}

func chunkStrings(values []string, size int) [][]string {
	if size <= 0 {
		size = len(values)
	}
	var chunks [][]string
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
