// Package query models a parsed search query: free-text terms plus scoped
// clauses such as group:, user:, tag:, uri:, type:, and stack:.
package query

import (
	"strconv"
	"strings"
)

// Query is the structured form of a search query string.
type Query struct {
	Any    []string // free-text terms matched across all fields
	Groups []string
	Users  []string
	Tags   []string
	URIs   []string
	Types  []string
	Stacks []string
	URIID  string
	Limit  int
	Offset int
}

// Parse splits a raw query string into scoped clauses and free-text terms.
// Unknown prefixes are treated as free text.
func Parse(raw string) Query {
	var q Query
	for _, tok := range strings.Fields(raw) {
		prefix, value, ok := strings.Cut(tok, ":")
		if !ok || value == "" {
			q.Any = append(q.Any, tok)
			continue
		}
		switch strings.ToLower(prefix) {
		case "group":
			q.Groups = append(q.Groups, value)
		case "user":
			q.Users = append(q.Users, value)
		case "tag":
			q.Tags = append(q.Tags, value)
		case "uri", "url":
			q.URIs = append(q.URIs, value)
		case "type":
			q.Types = append(q.Types, value)
		case "stack":
			q.Stacks = append(q.Stacks, value)
		case "uri_id":
			q.URIID = value
		default:
			q.Any = append(q.Any, tok)
		}
	}
	return q
}

// Unparse reassembles the query into its string form, scoped clauses first.
func (q Query) Unparse() string {
	var parts []string
	appendClauses := func(prefix string, values []string) {
		for _, v := range values {
			parts = append(parts, prefix+":"+v)
		}
	}
	appendClauses("group", q.Groups)
	appendClauses("user", q.Users)
	appendClauses("tag", q.Tags)
	appendClauses("uri", q.URIs)
	appendClauses("type", q.Types)
	appendClauses("stack", q.Stacks)
	if q.URIID != "" {
		parts = append(parts, "uri_id:"+q.URIID)
	}
	parts = append(parts, q.Any...)
	return strings.Join(parts, " ")
}

// IsEmpty reports whether the query carries no clause at all.
func (q Query) IsEmpty() bool {
	return len(q.Any) == 0 && len(q.Groups) == 0 && len(q.Users) == 0 &&
		len(q.Tags) == 0 && len(q.URIs) == 0 && len(q.Types) == 0 &&
		len(q.Stacks) == 0 && q.URIID == ""
}

// WantsUserFacet reports whether a user aggregation should accompany the
// query: only when it targets exactly one group.
func (q Query) WantsUserFacet() bool { return len(q.Groups) == 1 }

// Paginate returns a copy with Limit/Offset computed from a 1-based page
// number and a fixed page size.
func (q Query) Paginate(pageNum, size int) Query {
	if pageNum < 1 {
		pageNum = 1
	}
	q.Limit = size
	q.Offset = (pageNum - 1) * size
	return q
}

// ParsePage parses a 1-based page parameter. Missing, unparseable, and
// non-positive values all default to page 1.
func ParsePage(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Redirect targets for CheckRedirect.
const (
	RedirectGroup = "group"
	RedirectUser  = "user"
)

// Redirect describes the scoped route a general search should be sent to.
type Redirect struct {
	Kind  string // RedirectGroup or RedirectUser
	Value string
	Query string // the remaining query with the redirected clause stripped
}

// CheckRedirect implements the scoped-route redirect policy: a query on the
// general search route containing exactly one group clause (or exactly one
// user clause) redirects to the group (or user) page with that clause
// removed. Queries with more than one group or user clause are left alone,
// since the intersection of two distinct groups or users is by definition
// empty. When both a single group and a single user are present, both are
// stripped and the user redirect wins.
func CheckRedirect(q Query) (Redirect, bool) {
	var r Redirect
	found := false

	if len(q.Groups) == 1 {
		r = Redirect{Kind: RedirectGroup, Value: q.Groups[0]}
		q.Groups = nil
		found = true
	}
	if len(q.Users) == 1 {
		r = Redirect{Kind: RedirectUser, Value: q.Users[0]}
		q.Users = nil
		found = true
	}
	if !found {
		return Redirect{}, false
	}
	r.Query = q.Unparse()
	return r, true
}
