package annotation

import (
	"encoding/json"
	"fmt"
	"time"

	domann "github.com/renoted/renoted/internal/domain/annotation"
)

// row mirrors the annotations table. List-valued columns are JSON TEXT.
type row struct {
	ID           string
	UserID       string
	URIID        string
	URIAddress   string
	URINorm      string
	Kind         string
	Text         string
	TextRendered string
	Tags         string
	Selectors    string
	VideoMarkers string
	AudioMarkers string
	Group        string
	Shared       bool
	Extra        string
	Created      time.Time
	Updated      time.Time
}

func toRow(a *domann.Annotation) (row, error) {
	tags, err := marshalJSON(a.Tags(), "[]")
	if err != nil {
		return row{}, fmt.Errorf("marshal tags: %w", err)
	}
	selectors, err := marshalJSON(a.Selectors(), "[]")
	if err != nil {
		return row{}, fmt.Errorf("marshal selectors: %w", err)
	}
	videoMarkers, err := marshalJSON(a.VideoMarkers(), "[]")
	if err != nil {
		return row{}, fmt.Errorf("marshal video markers: %w", err)
	}
	audioMarkers, err := marshalJSON(a.AudioMarkers(), "[]")
	if err != nil {
		return row{}, fmt.Errorf("marshal audio markers: %w", err)
	}
	extra, err := marshalJSON(a.Extra(), "{}")
	if err != nil {
		return row{}, fmt.Errorf("marshal extra: %w", err)
	}

	return row{
		ID:           a.ID(),
		UserID:       a.UserID(),
		URIID:        a.URIID(),
		URIAddress:   a.TargetURI(),
		URINorm:      a.TargetURINormalized(),
		Kind:         a.Kind(),
		Text:         a.Text(),
		TextRendered: a.TextRendered(),
		Tags:         tags,
		Selectors:    selectors,
		VideoMarkers: videoMarkers,
		AudioMarkers: audioMarkers,
		Group:        a.Group(),
		Shared:       a.Shared(),
		Extra:        extra,
		Created:      a.Created(),
		Updated:      a.Updated(),
	}, nil
}

func (r row) toDomain() domann.Annotation {
	f := domann.Fields{
		UserID:              r.UserID,
		URIID:               r.URIID,
		TargetURI:           r.URIAddress,
		TargetURINormalized: r.URINorm,
		Kind:                r.Kind,
		Text:                r.Text,
		TextRendered:        r.TextRendered,
		Group:               r.Group,
		Shared:              r.Shared,
	}
	// Malformed JSON columns degrade to empty lists rather than failing reads.
	_ = json.Unmarshal([]byte(r.Tags), &f.Tags)
	_ = json.Unmarshal([]byte(r.Selectors), &f.Selectors)
	_ = json.Unmarshal([]byte(r.VideoMarkers), &f.VideoMarkers)
	_ = json.Unmarshal([]byte(r.AudioMarkers), &f.AudioMarkers)
	_ = json.Unmarshal([]byte(r.Extra), &f.Extra)

	return domann.Reconstruct(r.ID, f, r.Created, r.Updated)
}

func scanRow(s interface{ Scan(...any) error }) (row, error) {
	var r row
	err := s.Scan(
		&r.ID, &r.UserID, &r.URIID, &r.URIAddress, &r.URINorm,
		&r.Kind, &r.Text, &r.TextRendered,
		&r.Tags, &r.Selectors, &r.VideoMarkers, &r.AudioMarkers,
		&r.Group, &r.Shared, &r.Extra,
		&r.Created, &r.Updated,
	)
	return r, err
}

func marshalJSON(v any, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
