package annotation

import (
	"fmt"
	"time"
)

// WorldGroup is the default visibility scope for annotations that are not
// published into a named group.
const WorldGroup = "__world__"

// Selector types as serialized by clients.
const (
	SelectorTextPosition = "TextPositionSelector"
	SelectorTextQuote    = "TextQuoteSelector"
	SelectorRange        = "RangeSelector"
)

// Selector is one entry of an annotation's target selector list.
type Selector struct {
	Type   string `json:"type"`
	Start  int    `json:"start,omitempty"`
	End    int    `json:"end,omitempty"`
	Exact  string `json:"exact,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Suffix string `json:"suffix,omitempty"`
}

// Marker is a playback interval on a video or audio target. Timestamps are
// kept as the client-provided strings and parsed to seconds only when a sort
// key is derived.
type Marker struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// Fields holds the writable content of an annotation.
type Fields struct {
	UserID              string
	URIID               string
	TargetURI           string
	TargetURINormalized string
	Kind                string
	Text                string
	TextRendered        string
	Tags                []string
	Selectors           []Selector
	VideoMarkers        []Marker
	AudioMarkers        []Marker
	Group               string
	Shared              bool
	Extra               map[string]any
}

// Annotation is the annotation aggregate. The parent document reference
// (uri_id) is set at creation and never changes afterwards.
type Annotation struct {
	id      string
	fields  Fields
	created time.Time
	updated time.Time
}

// New validates and creates an Annotation. The caller supplies the id.
func New(id string, f Fields, now time.Time) (Annotation, error) {
	if id == "" {
		return Annotation{}, fmt.Errorf("annotation id is required")
	}
	if f.UserID == "" {
		return Annotation{}, fmt.Errorf("userid is required")
	}
	if f.URIID == "" {
		return Annotation{}, fmt.Errorf("uri_id is required")
	}
	if f.TargetURI == "" {
		return Annotation{}, fmt.Errorf("target_uri is required")
	}
	if f.Group == "" {
		f.Group = WorldGroup
	}
	if f.Extra == nil {
		f.Extra = map[string]any{}
	}
	return Annotation{id: id, fields: f, created: now, updated: now}, nil
}

// Reconstruct creates an Annotation without validation (storage hydration).
func Reconstruct(id string, f Fields, created, updated time.Time) Annotation {
	return Annotation{id: id, fields: f, created: created, updated: updated}
}

// ID returns the annotation identifier.
func (a *Annotation) ID() string { return a.id }

// UserID returns the full userid of the annotation owner.
func (a *Annotation) UserID() string { return a.fields.UserID }

// URIID returns the id of the parent page record.
func (a *Annotation) URIID() string { return a.fields.URIID }

// TargetURI returns the annotated URI as provided by the client.
func (a *Annotation) TargetURI() string { return a.fields.TargetURI }

// TargetURINormalized returns the annotated URI in normalized form.
func (a *Annotation) TargetURINormalized() string { return a.fields.TargetURINormalized }

// Kind returns the client-provided annotation type tag
// (for example "textannotation", "videoannotation").
func (a *Annotation) Kind() string { return a.fields.Kind }

// Text returns the annotation body.
func (a *Annotation) Text() string { return a.fields.Text }

// TextRendered returns the rendered and sanitized annotation body.
func (a *Annotation) TextRendered() string { return a.fields.TextRendered }

// Tags returns the tag list.
func (a *Annotation) Tags() []string { return a.fields.Tags }

// Selectors returns the target selector list.
func (a *Annotation) Selectors() []Selector { return a.fields.Selectors }

// VideoMarkers returns the video marker list.
func (a *Annotation) VideoMarkers() []Marker { return a.fields.VideoMarkers }

// AudioMarkers returns the audio marker list.
func (a *Annotation) AudioMarkers() []Marker { return a.fields.AudioMarkers }

// Group returns the group/visibility scope.
func (a *Annotation) Group() string { return a.fields.Group }

// Shared reports whether the annotation is visible to its group.
func (a *Annotation) Shared() bool { return a.fields.Shared }

// Extra returns the extensible key/value metadata. Documented producer keys:
// "uri_id" (set by the store at creation).
func (a *Annotation) Extra() map[string]any { return a.fields.Extra }

// Created returns the creation timestamp.
func (a *Annotation) Created() time.Time { return a.created }

// Updated returns the last-edit timestamp.
func (a *Annotation) Updated() time.Time { return a.updated }

// Fields returns a copy of the writable content, for update flows that
// modify a subset of fields and re-save.
func (a *Annotation) Fields() Fields { return a.fields }

// WithFields returns a copy carrying the given content and a bumped updated
// timestamp. Identity, uri_id, and created are preserved.
func (a *Annotation) WithFields(f Fields, now time.Time) Annotation {
	f.URIID = a.fields.URIID
	return Annotation{id: a.id, fields: f, created: a.created, updated: now}
}
