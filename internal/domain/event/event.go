// Package event defines the closed set of annotation-affecting actions that
// drive search-index propagation.
package event

import "fmt"

// Kind enumerates the annotation-affecting actions. The indexing worker keys
// its handler table on this enum; adding a kind without a handler is caught
// at worker construction.
type Kind int

const (
	// KindCreated is emitted after an annotation insert commits.
	KindCreated Kind = iota
	// KindUpdated is emitted after an annotation update commits.
	KindUpdated
	// KindDeleted is emitted after an annotation delete commits.
	KindDeleted
	// KindSharedCreated is emitted after a share upsert commits.
	KindSharedCreated
	// KindSharedDeleted is emitted after a share removal commits.
	KindSharedDeleted
	// KindStackArchived is emitted when a stack leaves the owner's active list.
	KindStackArchived
	// KindStackDearchived is emitted when a stack returns to the active list.
	KindStackDearchived

	kindCount
)

// Kinds returns every event kind, in declaration order.
func Kinds() []Kind {
	ks := make([]Kind, kindCount)
	for i := range ks {
		ks[i] = Kind(i)
	}
	return ks
}

func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindUpdated:
		return "updated"
	case KindDeleted:
		return "deleted"
	case KindSharedCreated:
		return "sharedcreate"
	case KindSharedDeleted:
		return "shareddelete"
	case KindStackArchived:
		return "stackarchive"
	case KindStackDearchived:
		return "stackdearchive"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one unit of work for the indexing propagator. AnnotationID is set
// for annotation and share events; UserID and Stack are set for stack events.
type Event struct {
	Kind         Kind
	AnnotationID string
	UserID       string
	Stack        string
}
