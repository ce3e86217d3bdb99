package result

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/renoted/renoted/internal/domain/annotation"
	"github.com/renoted/renoted/internal/domain/page"
)

func makeHit(t *testing.T, id, uriID, kind string, score float64, f annotation.Fields) Hit {
	t.Helper()
	f.UserID = "acct:alice@example.com"
	f.URIID = uriID
	f.TargetURI = "https://example.com/" + uriID
	f.Kind = kind
	a, err := annotation.New(id, f, time.Now())
	if err != nil {
		t.Fatalf("annotation.New: %v", err)
	}
	return Hit{Annotation: a, Score: score}
}

func makePage(id string) page.Page {
	return page.Reconstruct(id, "https://example.com/"+id, "title "+id, "", "acct:alice@example.com",
		false, nil, 0, false, time.Now(), time.Now())
}

func TestBucketByPage_FirstSeenOrder(t *testing.T) {
	hits := []Hit{
		makeHit(t, "a", "p2", "textannotation", 0.3, annotation.Fields{}),
		makeHit(t, "b", "p1", "textannotation", 0.9, annotation.Fields{}),
		makeHit(t, "c", "p2", "textannotation", 0.5, annotation.Fields{}),
	}
	pages := map[string]page.Page{"p1": makePage("p1"), "p2": makePage("p2")}

	buckets := BucketByPage(hits, pages, nil)
	if len(buckets) != 2 {
		t.Fatalf("got %d buckets, want 2", len(buckets))
	}
	if buckets[0].Page.ID() != "p2" || buckets[1].Page.ID() != "p1" {
		t.Errorf("bucket order = [%s %s], want [p2 p1]",
			buckets[0].Page.ID(), buckets[1].Page.ID())
	}
	if len(buckets[0].Annotations) != 2 || len(buckets[1].Annotations) != 1 {
		t.Errorf("member counts = [%d %d], want [2 1]",
			len(buckets[0].Annotations), len(buckets[1].Annotations))
	}
}

func TestBucketByPage_CountInvariant(t *testing.T) {
	// 5 hits, one of them pointing at an unresolvable page.
	var hits []Hit
	for i := 0; i < 4; i++ {
		hits = append(hits, makeHit(t, fmt.Sprintf("a%d", i), "p1", "textannotation", 0, annotation.Fields{}))
	}
	hits = append(hits, makeHit(t, "orphan", "gone", "textannotation", 0, annotation.Fields{}))
	pages := map[string]page.Page{"p1": makePage("p1")}

	buckets := BucketByPage(hits, pages, nil)
	sum := 0
	for _, b := range buckets {
		sum += len(b.Annotations)
	}
	if want := len(hits) - 1; sum != want {
		t.Errorf("sum of bucket members = %d, want %d", sum, want)
	}
}

func TestBucketByPage_MaxScore(t *testing.T) {
	hits := []Hit{
		makeHit(t, "a", "p1", "textannotation", 0.1, annotation.Fields{}),
		makeHit(t, "b", "p1", "textannotation", 0.8, annotation.Fields{}),
		makeHit(t, "c", "p1", "textannotation", 0.4, annotation.Fields{}),
	}
	buckets := BucketByPage(hits, map[string]page.Page{"p1": makePage("p1")}, nil)
	if len(buckets) != 1 {
		t.Fatalf("got %d buckets", len(buckets))
	}
	if got := buckets[0].MaxScore; got != 0.8 {
		t.Errorf("MaxScore = %v, want 0.8", got)
	}
}

func TestBucketByPage_UnscoredBucketDefaultsToZero(t *testing.T) {
	hits := []Hit{makeHit(t, "a", "p1", "textannotation", 0, annotation.Fields{})}
	buckets := BucketByPage(hits, map[string]page.Page{"p1": makePage("p1")}, nil)
	if got := buckets[0].MaxScore; got != 0.0 {
		t.Errorf("MaxScore = %v, want 0.0", got)
	}
}

func TestBucketByPage_TypeFilters(t *testing.T) {
	hits := []Hit{
		makeHit(t, "a", "p1", "videoannotation", 0, annotation.Fields{}),
		makeHit(t, "b", "p1", "textannotation", 0, annotation.Fields{}),
		makeHit(t, "c", "p2", "audioannotation", 0, annotation.Fields{}),
		makeHit(t, "d", "p3", "textannotation", 0, annotation.Fields{}),
	}
	pages := map[string]page.Page{"p1": makePage("p1"), "p2": makePage("p2"), "p3": makePage("p3")}
	stacks := map[string][]string{"p1": {"research", "toread"}}

	buckets := BucketByPage(hits, pages, stacks)
	if got := buckets[0].TypeFilters; !reflect.DeepEqual(got, []string{TypeVideo, "research", "toread"}) {
		t.Errorf("p1 TypeFilters = %v", got)
	}
	if got := buckets[1].TypeFilters; !reflect.DeepEqual(got, []string{TypeAudio}) {
		t.Errorf("p2 TypeFilters = %v", got)
	}
	if got := buckets[2].TypeFilters; !reflect.DeepEqual(got, []string{TypeText}) {
		t.Errorf("p3 TypeFilters = %v", got)
	}
}

func TestSortByPosition_StableAscending(t *testing.T) {
	hits := []Hit{
		makeHit(t, "c", "p1", "textannotation", 0.1, annotation.Fields{}),
		makeHit(t, "b", "p1", "textannotation", 0.5, annotation.Fields{
			Selectors: []annotation.Selector{{Type: annotation.SelectorTextPosition, Start: 10}},
		}),
		makeHit(t, "a", "p1", "textannotation", 0.9, annotation.Fields{
			Selectors: []annotation.Selector{{Type: annotation.SelectorTextPosition, Start: 50}},
		}),
	}

	SortByPosition(hits)

	got := []string{hits[0].Annotation.ID(), hits[1].Annotation.ID(), hits[2].Annotation.ID()}
	if !reflect.DeepEqual(got, []string{"c", "b", "a"}) {
		t.Errorf("order = %v, want [c b a]", got)
	}
}

func TestSortByPosition_TiesPreserveInputOrder(t *testing.T) {
	hits := []Hit{
		makeHit(t, "first", "p1", "textannotation", 0.2, annotation.Fields{}),
		makeHit(t, "second", "p1", "textannotation", 0.9, annotation.Fields{}),
		makeHit(t, "third", "p1", "textannotation", 0.4, annotation.Fields{}),
	}

	SortByPosition(hits)

	got := []string{hits[0].Annotation.ID(), hits[1].Annotation.ID(), hits[2].Annotation.ID()}
	if !reflect.DeepEqual(got, []string{"first", "second", "third"}) {
		t.Errorf("tied keys reordered: %v", got)
	}
}

func TestSortByPosition_MixedMediaComparableMagnitudes(t *testing.T) {
	hits := []Hit{
		makeHit(t, "text", "p1", "textannotation", 0, annotation.Fields{
			Selectors: []annotation.Selector{{Type: annotation.SelectorTextPosition, Start: 30}},
		}),
		makeHit(t, "video", "p1", "videoannotation", 0, annotation.Fields{
			VideoMarkers: []annotation.Marker{{Start: "5.5"}},
		}),
	}

	SortByPosition(hits)

	if hits[0].Annotation.ID() != "video" {
		t.Errorf("video at 5.5s should sort before text offset 30, got %s first",
			hits[0].Annotation.ID())
	}
}
