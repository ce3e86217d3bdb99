package annotation

import (
	"testing"
	"time"
)

func makeAnnotation(t *testing.T, f Fields) Annotation {
	t.Helper()
	f.UserID = "acct:alice@example.com"
	if f.URIID == "" {
		f.URIID = "page-1"
	}
	f.TargetURI = "https://example.com/article"
	a, err := New("ann-1", f, time.Now())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestPositionKey_VideoMarkerWins(t *testing.T) {
	a := makeAnnotation(t, Fields{
		VideoMarkers: []Marker{{Start: "12.5", End: "20"}},
		AudioMarkers: []Marker{{Start: "1"}},
		Selectors:    []Selector{{Type: SelectorTextPosition, Start: 99}},
	})
	if got := a.PositionKey(); got != 12.5 {
		t.Errorf("PositionKey = %v, want 12.5", got)
	}
}

func TestPositionKey_AudioMarker(t *testing.T) {
	a := makeAnnotation(t, Fields{
		AudioMarkers: []Marker{{Start: "3.25"}},
		Selectors:    []Selector{{Type: SelectorTextPosition, Start: 42}},
	})
	if got := a.PositionKey(); got != 3.25 {
		t.Errorf("PositionKey = %v, want 3.25", got)
	}
}

func TestPositionKey_TextPositionSelector(t *testing.T) {
	a := makeAnnotation(t, Fields{
		Selectors: []Selector{
			{Type: SelectorTextQuote, Exact: "quoted"},
			{Type: SelectorTextPosition, Start: 50, End: 60},
		},
	})
	if got := a.PositionKey(); got != 50 {
		t.Errorf("PositionKey = %v, want 50", got)
	}
}

func TestPositionKey_DefaultsToZero(t *testing.T) {
	a := makeAnnotation(t, Fields{
		Selectors: []Selector{{Type: SelectorTextQuote, Exact: "quoted"}},
	})
	if got := a.PositionKey(); got != 0 {
		t.Errorf("PositionKey = %v, want 0", got)
	}
}

func TestPositionKey_UnparseableTimestamp(t *testing.T) {
	a := makeAnnotation(t, Fields{
		VideoMarkers: []Marker{{Start: "not-a-number"}},
	})
	if got := a.PositionKey(); got != 0 {
		t.Errorf("PositionKey = %v, want 0", got)
	}
}

func TestNew_Validation(t *testing.T) {
	now := time.Now()
	if _, err := New("", Fields{UserID: "u", URIID: "p", TargetURI: "x"}, now); err == nil {
		t.Error("expected error for empty id")
	}
	if _, err := New("a", Fields{URIID: "p", TargetURI: "x"}, now); err == nil {
		t.Error("expected error for empty userid")
	}
	if _, err := New("a", Fields{UserID: "u", TargetURI: "x"}, now); err == nil {
		t.Error("expected error for empty uri_id")
	}
}

func TestNew_DefaultsGroupAndExtra(t *testing.T) {
	a, err := New("a", Fields{UserID: "u", URIID: "p", TargetURI: "x"}, time.Now())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Group() != WorldGroup {
		t.Errorf("Group = %q, want %q", a.Group(), WorldGroup)
	}
	if a.Extra() == nil {
		t.Error("Extra should default to an empty map")
	}
}

func TestWithFields_PreservesIdentityAndURIID(t *testing.T) {
	a := makeAnnotation(t, Fields{Text: "old"})
	f := a.Fields()
	f.Text = "new"
	f.URIID = "someone-elses-page"

	later := a.Created().Add(time.Hour)
	b := a.WithFields(f, later)

	if b.ID() != a.ID() {
		t.Errorf("ID changed: %q != %q", b.ID(), a.ID())
	}
	if b.URIID() != a.URIID() {
		t.Errorf("URIID must never change: got %q", b.URIID())
	}
	if b.Text() != "new" {
		t.Errorf("Text = %q, want %q", b.Text(), "new")
	}
	if !b.Updated().Equal(later) {
		t.Errorf("Updated = %v, want %v", b.Updated(), later)
	}
	if !b.Created().Equal(a.Created()) {
		t.Error("Created must be preserved")
	}
}
