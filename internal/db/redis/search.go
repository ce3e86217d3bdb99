package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/renoted/renoted/internal/db"
)

// Search runs a full-text/faceted query via FT.SEARCH, plus one FT.AGGREGATE
// per requested facet.
func (s *Store) Search(ctx context.Context, q *db.Query) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	queryStr := buildQuery(q.Any, q.Tags)

	args := []string{
		q.IndexName, queryStr,
		"WITHSCORES",
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "syntax error") {
			return nil, fmt.Errorf("%w: %s", db.ErrBadQuery, queryStr)
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	result, err := parseSearchResult(raw)
	if err != nil {
		return nil, err
	}

	for _, facet := range q.Facets {
		counts, err := s.Aggregate(ctx, q.IndexName, queryStr, facet.Field, facet.Limit)
		if err != nil {
			return nil, err
		}
		if result.Facets == nil {
			result.Facets = make(map[string][]db.FacetCount, len(q.Facets))
		}
		result.Facets[facet.Field] = counts
	}

	return result, nil
}

// Aggregate returns the top values of a TAG field among documents matching
// query, via FT.AGGREGATE GROUPBY + COUNT.
func (s *Store) Aggregate(ctx context.Context, index, query, field string, limit int) ([]db.FacetCount, error) {
	if limit <= 0 {
		limit = 10
	}
	args := []string{
		index, query,
		"GROUPBY", "1", "@" + field,
		"REDUCE", "COUNT", "0", "AS", "count",
		"SORTBY", "2", "@count", "DESC",
		"MAX", strconv.Itoa(limit),
	}

	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpAggregate, Err: err}
	}

	return parseAggregateResult(raw, field)
}

// --- Result parsing ---

func parseSearchResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, total)
	// 3-stride: [total, key1, score1, fields1, key2, score2, fields2, ...]
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}

		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  score,
			Fields: parseFieldPairs(fields),
		})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseAggregateResult(raw []rueidis.RedisMessage, field string) ([]db.FacetCount, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	// [total, row1, row2, ...], each row a flat field-value pair array.
	counts := make([]db.FacetCount, 0, len(raw)-1)
	for _, row := range raw[1:] {
		pairs, err := row.ToArray()
		if err != nil {
			continue
		}
		m := parseFieldPairs(pairs)
		value, ok := m[field]
		if !ok {
			continue
		}
		count, err := strconv.Atoi(m["count"])
		if err != nil {
			continue
		}
		counts = append(counts, db.FacetCount{Value: value, Count: count})
	}

	return counts, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Query building ---

// buildQuery composes exact TAG clauses and free-text terms into one
// FT.SEARCH query string. No clauses at all match everything.
func buildQuery(any []string, tags []db.TagFilter) string {
	var parts []string

	for _, t := range tags {
		if clause := buildTagClause(t); clause != "" {
			parts = append(parts, clause)
		}
	}

	if text := buildTextClause(any); text != "" {
		parts = append(parts, text)
	}

	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

func buildTagClause(t db.TagFilter) string {
	if t.Field == "" || len(t.Values) == 0 {
		return ""
	}
	escaped := make([]string, len(t.Values))
	for i, v := range t.Values {
		escaped[i] = tagEscaper.Replace(v)
	}
	return fmt.Sprintf("@%s:{%s}", t.Field, strings.Join(escaped, "|"))
}

func buildTextClause(terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	escaped := make([]string, 0, len(terms))
	for _, term := range terms {
		if term == "" {
			continue
		}
		escaped = append(escaped, escapeQuery(term))
	}
	if len(escaped) == 0 {
		return ""
	}
	return "(" + strings.Join(escaped, " ") + ")"
}

// --- Query helpers ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
	"/", "\\/",
	"?", "\\?",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)
