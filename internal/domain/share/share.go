// Package share holds the records behind annotation sharing: a Sharing row
// per (annotation, recipient), a SharedAnnotation copy of the original
// annotation content, and a SharedPage record scoped to the recipient.
//
// A SharedAnnotation's lifetime is independent of the original annotation:
// deleting the original does not cascade.
package share

import (
	"time"

	"github.com/renoted/renoted/internal/domain/annotation"
	"github.com/renoted/renoted/internal/domain/page"
)

// Sharing records who shared which annotation with whom. Sharing the same
// annotation to the same recipient twice updates the existing record.
type Sharing struct {
	ID               string
	AnnotationID     string
	SharedByUserID   string
	SharedToUsername string
	SharedToEmail    string
	IsShared         bool
	Created          time.Time
	Updated          time.Time
}

// SharedAnnotation is a copy of an annotation's content fields, owned by the
// recipient and pointing back at the Sharing record. URIID references the
// recipient-scoped SharedPage, not the sharer's page.
type SharedAnnotation struct {
	ID             string
	SharingID      string
	UserID         string
	SharedByUserID string
	Text           string
	TextRendered   string
	Tags           []string
	Shared         bool
	TargetURI      string
	TargetURINorm  string
	Selectors      []annotation.Selector
	VideoMarkers   []annotation.Marker
	AudioMarkers   []annotation.Marker
	Title          string
	Kind           string
	URIID          string
	Extra          map[string]any
	Created        time.Time
	Updated        time.Time
}

// AsAnnotation presents the shared copy through the annotation value type,
// so the search read path can rank, sort, and bucket own and shared hits
// uniformly.
func (sa *SharedAnnotation) AsAnnotation() annotation.Annotation {
	return annotation.Reconstruct(sa.ID, annotation.Fields{
		UserID:              sa.UserID,
		URIID:               sa.URIID,
		TargetURI:           sa.TargetURI,
		TargetURINormalized: sa.TargetURINorm,
		Kind:                sa.Kind,
		Text:                sa.Text,
		TextRendered:        sa.TextRendered,
		Tags:                sa.Tags,
		Selectors:           sa.Selectors,
		VideoMarkers:        sa.VideoMarkers,
		AudioMarkers:        sa.AudioMarkers,
		Shared:              sa.Shared,
		Extra:               sa.Extra,
	}, sa.Created, sa.Updated)
}

// SharedPage is the recipient's record of a shared document, deduped per
// (uriaddress, userid).
type SharedPage struct {
	ID          string
	URIAddress  string
	Title       string
	Description string
	UserID      string
	Tags        []string
	Created     time.Time
	Updated     time.Time
}

// AsPage presents the shared page through the page value type for bucketing.
func (sp *SharedPage) AsPage() page.Page {
	return page.Reconstruct(sp.ID, sp.URIAddress, sp.Title, sp.Description,
		sp.UserID, false, sp.Tags, 0, false, sp.Created, sp.Updated)
}
