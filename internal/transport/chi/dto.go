package chi

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	domann "github.com/renoted/renoted/internal/domain/annotation"
	dompage "github.com/renoted/renoted/internal/domain/page"
	domshare "github.com/renoted/renoted/internal/domain/share"
	"github.com/renoted/renoted/internal/domain/search/result"
	annotationuc "github.com/renoted/renoted/internal/usecase/annotation"
	pageuc "github.com/renoted/renoted/internal/usecase/page"
)

// AnnotationRequest is the request body for creating or updating an
// annotation. On update, zero-valued uri and kind keep the stored values.
type AnnotationRequest struct {
	URI           string            `json:"uri"`
	URINormalized string            `json:"uri_normalized,omitempty"`
	Title         string            `json:"title,omitempty"`
	Kind          string            `json:"kind,omitempty"`
	Text          string            `json:"text"`
	TextRendered  string            `json:"text_rendered,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	Selectors     []domann.Selector `json:"selectors,omitempty"`
	VideoMarkers  []domann.Marker   `json:"video_markers,omitempty"`
	AudioMarkers  []domann.Marker   `json:"audio_markers,omitempty"`
	Group         string            `json:"group,omitempty"`
	Shared        bool              `json:"shared,omitempty"`
	Extra         map[string]any    `json:"extra,omitempty"`
}

// Validate checks a create payload. Updates skip the uri requirement.
func (r AnnotationRequest) Validate(create bool) error {
	fields := []*validation.FieldRules{
		validation.Field(&r.Text, validation.Length(0, 65536)),
		validation.Field(&r.Kind, validation.In("", "text", "audio", "video", "audiotext", "videotext")),
	}
	if create {
		fields = append(fields,
			validation.Field(&r.URI, validation.Required, is.RequestURI),
		)
	}
	return validation.ValidateStruct(&r, fields...)
}

func (r AnnotationRequest) toInput() annotationuc.CreateInput {
	return annotationuc.CreateInput{
		TargetURI:           r.URI,
		TargetURINormalized: r.URINormalized,
		Title:               r.Title,
		Kind:                r.Kind,
		Text:                r.Text,
		TextRendered:        r.TextRendered,
		Tags:                r.Tags,
		Selectors:           r.Selectors,
		VideoMarkers:        r.VideoMarkers,
		AudioMarkers:        r.AudioMarkers,
		Group:               r.Group,
		Shared:              r.Shared,
		Extra:               r.Extra,
	}
}

// AnnotationResponse is the wire form of an annotation.
type AnnotationResponse struct {
	ID            string            `json:"id"`
	User          string            `json:"user"`
	URI           string            `json:"uri"`
	URINormalized string            `json:"uri_normalized,omitempty"`
	URIID         string            `json:"uri_id,omitempty"`
	Kind          string            `json:"kind"`
	Text          string            `json:"text"`
	TextRendered  string            `json:"text_rendered,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	Selectors     []domann.Selector `json:"selectors,omitempty"`
	VideoMarkers  []domann.Marker   `json:"video_markers,omitempty"`
	AudioMarkers  []domann.Marker   `json:"audio_markers,omitempty"`
	Group         string            `json:"group,omitempty"`
	Shared        bool              `json:"shared"`
	Extra         map[string]any    `json:"extra,omitempty"`
	Created       time.Time         `json:"created"`
	Updated       time.Time         `json:"updated"`
}

func annotationToDTO(a *domann.Annotation) AnnotationResponse {
	return AnnotationResponse{
		ID:            a.ID(),
		User:          a.UserID(),
		URI:           a.TargetURI(),
		URINormalized: a.TargetURINormalized(),
		URIID:         a.URIID(),
		Kind:          a.Kind(),
		Text:          a.Text(),
		TextRendered:  a.TextRendered(),
		Tags:          a.Tags(),
		Selectors:     a.Selectors(),
		VideoMarkers:  a.VideoMarkers(),
		AudioMarkers:  a.AudioMarkers(),
		Group:         a.Group(),
		Shared:        a.Shared(),
		Extra:         a.Extra(),
		Created:       a.Created(),
		Updated:       a.Updated(),
	}
}

// ScoredAnnotation pairs an annotation with its relevance score.
type ScoredAnnotation struct {
	AnnotationResponse
	Score float64 `json:"score"`
}

// PageResponse is the wire form of a page record.
type PageResponse struct {
	ID          string    `json:"id"`
	URI         string    `json:"uri"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	IsBookmark  bool      `json:"is_bookmark,omitempty"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

func pageToDTO(p *dompage.Page) PageResponse {
	return PageResponse{
		ID:          p.ID(),
		URI:         p.URIAddress(),
		Title:       p.Title(),
		Description: p.Description(),
		Tags:        p.Tags(),
		IsBookmark:  p.IsBookmark(),
		Created:     p.Created(),
		Updated:     p.Updated(),
	}
}

// AnnotatedPageResponse is a page with its annotations in document order.
type AnnotatedPageResponse struct {
	PageResponse
	Annotations []AnnotationResponse `json:"annotations"`
}

func annotatedToDTO(ap pageuc.Annotated) AnnotatedPageResponse {
	anns := make([]AnnotationResponse, len(ap.Annotations))
	for i := range ap.Annotations {
		anns[i] = annotationToDTO(&ap.Annotations[i])
	}
	return AnnotatedPageResponse{PageResponse: pageToDTO(&ap.Page), Annotations: anns}
}

// PageUpdateRequest is the request body for editing page metadata.
type PageUpdateRequest struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Validate checks a page update payload.
func (r PageUpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Length(0, 1024)),
		validation.Field(&r.Description, validation.Length(0, 8192)),
	)
}

// ShareRequest identifies the recipient of a share.
type ShareRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email"`
	Title  string `json:"title,omitempty"`
}

// Validate checks a share payload.
func (r ShareRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// SharedAnnotationResponse is the wire form of a shared annotation copy.
type SharedAnnotationResponse struct {
	ID           string            `json:"id"`
	User         string            `json:"user"`
	SharedBy     string            `json:"shared_by"`
	URI          string            `json:"uri"`
	URIID        string            `json:"uri_id,omitempty"`
	Title        string            `json:"title,omitempty"`
	Kind         string            `json:"kind"`
	Text         string            `json:"text"`
	TextRendered string            `json:"text_rendered,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Selectors    []domann.Selector `json:"selectors,omitempty"`
	VideoMarkers []domann.Marker   `json:"video_markers,omitempty"`
	AudioMarkers []domann.Marker   `json:"audio_markers,omitempty"`
	Created      time.Time         `json:"created"`
	Updated      time.Time         `json:"updated"`
}

func sharedToDTO(sa *domshare.SharedAnnotation) SharedAnnotationResponse {
	return SharedAnnotationResponse{
		ID:           sa.ID,
		User:         sa.UserID,
		SharedBy:     sa.SharedByUserID,
		URI:          sa.TargetURI,
		URIID:        sa.URIID,
		Title:        sa.Title,
		Kind:         sa.Kind,
		Text:         sa.Text,
		TextRendered: sa.TextRendered,
		Tags:         sa.Tags,
		Selectors:    sa.Selectors,
		VideoMarkers: sa.VideoMarkers,
		AudioMarkers: sa.AudioMarkers,
		Created:      sa.Created,
		Updated:      sa.Updated,
	}
}

// FacetDTO is one facet aggregation row.
type FacetDTO struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// BucketResponse groups one document's matched annotations.
type BucketResponse struct {
	Page        PageResponse       `json:"page"`
	Annotations []ScoredAnnotation `json:"annotations"`
	TypeFilters []string           `json:"type_filters"`
	MaxScore    float64            `json:"max_score"`
}

// SearchResponse is the wire form of one search.
type SearchResponse struct {
	Total      int              `json:"total"`
	Buckets    []BucketResponse `json:"buckets"`
	TagFacets  []FacetDTO       `json:"tag_facets,omitempty"`
	UserFacets []FacetDTO       `json:"user_facets,omitempty"`
}

func bucketToDTO(b *result.DocumentBucket) BucketResponse {
	anns := make([]ScoredAnnotation, len(b.Annotations))
	for i, h := range b.Annotations {
		anns[i] = ScoredAnnotation{
			AnnotationResponse: annotationToDTO(&h.Annotation),
			Score:              h.Score,
		}
	}
	return BucketResponse{
		Page:        pageToDTO(&b.Page),
		Annotations: anns,
		TypeFilters: b.TypeFilters,
		MaxScore:    b.MaxScore,
	}
}

func facetsToDTO(in []result.FacetCount) []FacetDTO {
	if len(in) == 0 {
		return nil
	}
	out := make([]FacetDTO, len(in))
	for i, fc := range in {
		out[i] = FacetDTO{Value: fc.Value, Count: fc.Count}
	}
	return out
}

// RecallRequest asks for annotations related by tag to one of the caller's
// pages.
type RecallRequest struct {
	URI string `json:"uri"`
}

// Validate checks a recall payload.
func (r RecallRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.URI, validation.Required, is.RequestURI),
	)
}

// StackRenameRequest carries the new name for a stack.
type StackRenameRequest struct {
	Name string `json:"name"`
}

// Validate checks a rename payload.
func (r StackRenameRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 256)),
	)
}
