package annotation

import "strconv"

// PositionKey derives the numeric sort key representing where in the document
// this annotation occurs. Policy, in priority order:
//
//  1. first video marker start time, parsed as seconds
//  2. first audio marker start time, parsed as seconds
//  3. start offset of the first text-position selector
//  4. 0
//
// Text offsets and timestamps are treated as comparable magnitudes; a
// document mixing annotation types sorts on this unified key.
func (a *Annotation) PositionKey() float64 {
	if len(a.fields.VideoMarkers) > 0 {
		return parseSeconds(a.fields.VideoMarkers[0].Start)
	}
	if len(a.fields.AudioMarkers) > 0 {
		return parseSeconds(a.fields.AudioMarkers[0].Start)
	}
	for _, s := range a.fields.Selectors {
		if s.Type == SelectorTextPosition {
			return float64(s.Start)
		}
	}
	return 0
}

// parseSeconds parses a client-provided timestamp string. Unparseable
// timestamps sort to the document start.
func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
