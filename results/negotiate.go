package results

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vemonet/curies/errors"
)

// acceptClause is one parsed entry of an Accept header
type acceptClause struct {
	mediaType string
	quality   float64
	position  int
}

// Negotiate selects the response serialization for an Accept header. The
// header's clauses are ordered by quality weight (ties keep header order) and
// matched against the ordered Formats table: first exact match wins, then the
// first format compatible with a wildcard clause. An empty header means "any"
// and yields the first format. When nothing is acceptable the caller gets an
// explicit error, never a silent default.
func Negotiate(accept string) (Format, error) {
	clauses := parseAccept(accept)
	if len(clauses) == 0 {
		return Formats[0], nil
	}

	for _, clause := range clauses {
		if format, ok := matchClause(clause.mediaType); ok {
			return format, nil
		}
	}

	return "", errors.WrapInvalid(errors.ErrNotAcceptable, "results", "Negotiate",
		fmt.Sprintf("no supported format in %q", accept))
}

// matchClause resolves one media type against the format table
func matchClause(mediaType string) (Format, bool) {
	// exact match first
	for _, f := range Formats {
		if string(f) == mediaType {
			return f, true
		}
	}

	// then first compatible wildcard
	if mediaType == "*/*" {
		return Formats[0], true
	}
	if prefix, ok := strings.CutSuffix(mediaType, "/*"); ok {
		for _, f := range Formats {
			if strings.HasPrefix(string(f), prefix+"/") {
				return f, true
			}
		}
	}

	return "", false
}

// parseAccept splits an Accept header into clauses sorted by descending
// quality, dropping q=0 entries and malformed ones
func parseAccept(accept string) []acceptClause {
	var clauses []acceptClause

	for i, part := range strings.Split(accept, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		fields := strings.Split(part, ";")
		mediaType := strings.ToLower(strings.TrimSpace(fields[0]))
		if mediaType == "" || !strings.Contains(mediaType, "/") {
			continue
		}

		quality := 1.0
		for _, param := range fields[1:] {
			key, value, found := strings.Cut(strings.TrimSpace(param), "=")
			if !found || strings.TrimSpace(key) != "q" {
				continue
			}
			if q, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				quality = q
			}
		}
		if quality <= 0 {
			continue
		}

		clauses = append(clauses, acceptClause{mediaType: mediaType, quality: quality, position: i})
	}

	sort.SliceStable(clauses, func(a, b int) bool {
		if clauses[a].quality != clauses[b].quality {
			return clauses[a].quality > clauses[b].quality
		}
		return clauses[a].position < clauses[b].position
	})

	return clauses
}
