// Package searchindex maintains the RediSearch mirrors of annotations and
// shared annotation copies, and runs ranked queries against them.
package searchindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/renoted/renoted/internal/db"
	"github.com/renoted/renoted/internal/domain"
	domann "github.com/renoted/renoted/internal/domain/annotation"
	domshare "github.com/renoted/renoted/internal/domain/share"
	"github.com/renoted/renoted/internal/domain/search/query"
	"github.com/renoted/renoted/internal/domain/search/result"
)

// Default index layout.
const (
	DefaultAnnIndex     = "renoted:ann:idx"
	DefaultAnnPrefix    = "renoted:ann:"
	DefaultSharedIndex  = "renoted:shared:idx"
	DefaultSharedPrefix = "renoted:shared:"

	tagSeparator  = ","
	tagFacetLimit = 10

	defaultQueryTimeout = 5 * time.Second
)

// store is the consumer interface on the search backend (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	Search(ctx context.Context, q *db.Query) (*db.SearchResult, error)
}

// Config overrides the default index names and key prefixes.
type Config struct {
	AnnIndex     string
	AnnPrefix    string
	SharedIndex  string
	SharedPrefix string
	QueryTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = defaultQueryTimeout
	}
	if c.AnnIndex == "" {
		c.AnnIndex = DefaultAnnIndex
	}
	if c.AnnPrefix == "" {
		c.AnnPrefix = DefaultAnnPrefix
	}
	if c.SharedIndex == "" {
		c.SharedIndex = DefaultSharedIndex
	}
	if c.SharedPrefix == "" {
		c.SharedPrefix = DefaultSharedPrefix
	}
}

// Repo implements the search index repository.
type Repo struct {
	store store
	cfg   Config
}

// New creates a search index repository.
func New(s store, cfg Config) *Repo {
	cfg.applyDefaults()
	return &Repo{store: s, cfg: cfg}
}

// EnsureIndexes creates both FT indexes if they are missing.
func (r *Repo) EnsureIndexes(ctx context.Context) error {
	for _, def := range r.indexDefs() {
		if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("create index %s: %w", def.Name, err)
		}
	}
	return nil
}

// RebuildIndexes drops both FT indexes and recreates them from the current
// schema. Dropping an index keeps the underlying hashes, so the new index
// picks them back up as RediSearch rescans the prefixes.
func (r *Repo) RebuildIndexes(ctx context.Context) error {
	for _, def := range r.indexDefs() {
		exists, err := r.store.IndexExists(ctx, def.Name)
		if err != nil {
			return fmt.Errorf("check index %s: %w", def.Name, err)
		}
		if exists {
			if err := r.store.DropIndex(ctx, def.Name); err != nil {
				return fmt.Errorf("drop index %s: %w", def.Name, err)
			}
		}
		if err := r.store.CreateIndex(ctx, def); err != nil {
			return fmt.Errorf("create index %s: %w", def.Name, err)
		}
	}
	return nil
}

func (r *Repo) indexDefs() []*db.IndexDefinition {
	return []*db.IndexDefinition{
		{
			Name:     r.cfg.AnnIndex,
			Prefixes: []string{r.cfg.AnnPrefix},
			Fields:   annSchema(),
		},
		{
			Name:     r.cfg.SharedIndex,
			Prefixes: []string{r.cfg.SharedPrefix},
			Fields:   annSchema(),
		},
	}
}

func annSchema() []db.IndexField {
	return []db.IndexField{
		{Name: "text", Type: db.IndexFieldText},
		{Name: "title", Type: db.IndexFieldText},
		{Name: "user", Type: db.IndexFieldTag},
		{Name: "group", Type: db.IndexFieldTag},
		{Name: "tags", Type: db.IndexFieldTag, TagSeparator: tagSeparator},
		{Name: "uri", Type: db.IndexFieldTag},
		{Name: "uriid", Type: db.IndexFieldTag},
		{Name: "mediatype", Type: db.IndexFieldTag},
		{Name: "stacks", Type: db.IndexFieldTag, TagSeparator: tagSeparator},
	}
}

// UpsertAnnotation mirrors an annotation into the index. The caller passes
// the page's current stack memberships so stack: queries stay accurate.
func (r *Repo) UpsertAnnotation(ctx context.Context, a *domann.Annotation, stacks []string) error {
	fields := map[string]string{
		"text":      a.Text(),
		"title":     "",
		"user":      a.UserID(),
		"group":     a.Group(),
		"tags":      strings.Join(a.Tags(), tagSeparator),
		"uri":       a.TargetURI(),
		"uriid":     a.URIID(),
		"mediatype": mediaType(a.Kind()),
		"stacks":    strings.Join(stacks, tagSeparator),
	}
	if err := r.store.HSet(ctx, r.cfg.AnnPrefix+a.ID(), fields); err != nil {
		return fmt.Errorf("index annotation %s: %w", a.ID(), err)
	}
	return nil
}

// RemoveAnnotation drops an annotation from the index.
func (r *Repo) RemoveAnnotation(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.cfg.AnnPrefix+id); err != nil {
		return fmt.Errorf("unindex annotation %s: %w", id, err)
	}
	return nil
}

// UpsertShared mirrors a shared annotation copy, scoped to the recipient.
func (r *Repo) UpsertShared(ctx context.Context, a *domshare.SharedAnnotation) error {
	fields := map[string]string{
		"text":      a.Text,
		"title":     a.Title,
		"user":      a.UserID,
		"group":     "",
		"tags":      strings.Join(a.Tags, tagSeparator),
		"uri":       a.TargetURI,
		"uriid":     a.URIID,
		"mediatype": mediaType(a.Kind),
		"stacks":    "",
	}
	if err := r.store.HSet(ctx, r.cfg.SharedPrefix+a.ID, fields); err != nil {
		return fmt.Errorf("index shared annotation %s: %w", a.ID, err)
	}
	return nil
}

// RemoveShared drops a shared annotation copy from the index.
func (r *Repo) RemoveShared(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.cfg.SharedPrefix+id); err != nil {
		return fmt.Errorf("unindex shared annotation %s: %w", id, err)
	}
	return nil
}

// Search runs a query against the user's own annotations. An explicit
// user: or group: clause widens the scope; otherwise results are limited to
// the requesting user.
func (r *Repo) Search(ctx context.Context, q query.Query, scopeUser string) (result.IDPage, error) {
	return r.search(ctx, r.cfg.AnnIndex, r.cfg.AnnPrefix, q, scopeUser)
}

// SearchShared runs a query against the copies shared to the recipient.
func (r *Repo) SearchShared(ctx context.Context, q query.Query, recipient string) (result.IDPage, error) {
	q.Users = nil
	q.Groups = nil
	return r.search(ctx, r.cfg.SharedIndex, r.cfg.SharedPrefix, q, recipient)
}

func (r *Repo) search(ctx context.Context, index, prefix string, q query.Query, scopeUser string) (result.IDPage, error) {
	dbq := &db.Query{
		IndexName: index,
		Any:       q.Any,
		Limit:     q.Limit,
		Offset:    q.Offset,
	}
	if dbq.Limit <= 0 {
		dbq.Limit = 20
	}

	users := q.Users
	if len(users) == 0 && len(q.Groups) == 0 && scopeUser != "" {
		users = []string{scopeUser}
	}
	addTag := func(field string, values []string) {
		if len(values) > 0 {
			dbq.Tags = append(dbq.Tags, db.TagFilter{Field: field, Values: values})
		}
	}
	addTag("user", users)
	addTag("group", q.Groups)
	addTag("tags", q.Tags)
	addTag("uri", q.URIs)
	addTag("mediatype", q.Types)
	addTag("stacks", q.Stacks)
	if q.URIID != "" {
		addTag("uriid", []string{q.URIID})
	}

	dbq.Facets = []db.Facet{{Field: "tags", Limit: tagFacetLimit}}
	if q.WantsUserFacet() {
		dbq.Facets = append(dbq.Facets, db.Facet{Field: "user", Limit: tagFacetLimit})
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	res, err := r.store.Search(ctx, dbq)
	if err != nil {
		if errors.Is(err, db.ErrBadQuery) {
			return result.IDPage{}, fmt.Errorf("%w: %s", domain.ErrValidation, q.Unparse())
		}
		return result.IDPage{}, fmt.Errorf("search %s: %w: %s", index, domain.ErrBackendUnavailable, err)
	}

	pageOut := result.IDPage{
		IDs:    make([]string, 0, len(res.Entries)),
		Scores: make(map[string]float64, len(res.Entries)),
		Total:  res.Total,
	}
	for _, e := range res.Entries {
		id := strings.TrimPrefix(e.Key, prefix)
		pageOut.IDs = append(pageOut.IDs, id)
		pageOut.Scores[id] = e.Score
	}
	pageOut.TagFacets = toFacetCounts(res.Facets["tags"])
	pageOut.UserFacets = toFacetCounts(res.Facets["user"])
	return pageOut, nil
}

func toFacetCounts(in []db.FacetCount) []result.FacetCount {
	if len(in) == 0 {
		return nil
	}
	out := make([]result.FacetCount, len(in))
	for i, fc := range in {
		out[i] = result.FacetCount{Value: fc.Value, Count: fc.Count}
	}
	return out
}

// mediaType classifies an annotation kind tag into text, audio, or video.
func mediaType(kind string) string {
	k := strings.ToLower(kind)
	switch {
	case strings.Contains(k, "audio"):
		return result.TypeAudio
	case strings.Contains(k, "video"):
		return result.TypeVideo
	default:
		return result.TypeText
	}
}
