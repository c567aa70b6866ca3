package constants

// DocumentStatus is the lifecycle status of a submitted document.
type DocumentStatus string

// Stable values (these exact strings are returned by the API and stored in the DB).
const (
	StatusProcessing DocumentStatus = "processing" // rewrite in flight
	StatusCompleted  DocumentStatus = "completed"  // terminal: corrected content available
	StatusFailed     DocumentStatus = "failed"     // terminal: rewrite failed
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether from -> to is a legal edge.
// The only edges are processing -> completed and processing -> failed.
func CanTransition(from, to DocumentStatus) bool {
	if from == to {
		return false
	}
	return from == StatusProcessing && to.IsTerminal()
}
