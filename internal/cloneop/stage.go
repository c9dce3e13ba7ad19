package cloneop

// Stage is the ordered lifecycle of a clone operation. Stage order is
// fixed; an event stream never reports an earlier stage after a later one.
// Completed and Error are terminal and mutually exclusive.
type Stage int

const (
	StageInitializing Stage = iota
	StageConnecting
	StageDownloading
	StageUnpacking
	StageCheckingOut
	StageCompleted
	StageError
)

func (s Stage) String() string {
	switch s {
	case StageInitializing:
		return "initializing"
	case StageConnecting:
		return "connecting"
	case StageDownloading:
		return "downloading"
	case StageUnpacking:
		return "unpacking"
	case StageCheckingOut:
		return "checking-out"
	case StageCompleted:
		return "completed"
	case StageError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the stage ends the event stream.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// stageSpan maps a stage onto its slice of the 0-100 percent scale. The
// split is uneven on purpose: transfer dominates wall time, so Downloading
// gets most of the scale.
func stageSpan(s Stage) (lo, hi int) {
	switch s {
	case StageInitializing:
		return 0, 5
	case StageConnecting:
		return 5, 10
	case StageDownloading:
		return 10, 80
	case StageUnpacking:
		return 80, 95
	case StageCheckingOut:
		return 95, 100
	default:
		return 100, 100
	}
}

// stagePercent interpolates done/total into the stage's span.
func stagePercent(s Stage, done, total int) int {
	lo, hi := stageSpan(s)
	if total <= 0 {
		return lo
	}
	if done > total {
		done = total
	}
	return lo + (hi-lo)*done/total
}
