package encoding

// FileState tracks one file through the run.
type FileState string

const (
	StateProbing   FileState = "probing"
	StateEncoding  FileState = "encoding"
	StateSucceeded FileState = "succeeded"
	StateFailed    FileState = "failed"
	StateCancelled FileState = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s FileState) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

var fileTransitions = map[FileState][]FileState{
	StateProbing:  {StateEncoding, StateFailed, StateCancelled},
	StateEncoding: {StateSucceeded, StateFailed, StateCancelled},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to FileState) bool {
	for _, next := range fileTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
