package gitexec

import "strings"

// FailureKind is a coarse classification of a failed operation's message,
// used to decide whether stored credentials should be invalidated and how
// the failure is surfaced.
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureAuth
	FailureNetwork
	FailureNonFastForward
	FailureConflict
	FailureCancelled
)

func (k FailureKind) String() string {
	switch k {
	case FailureAuth:
		return "authentication"
	case FailureNetwork:
		return "network"
	case FailureNonFastForward:
		return "non-fast-forward"
	case FailureConflict:
		return "conflict"
	case FailureCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Substring tables per failure kind. Both backends funnel their error text
// through here, so this is the single seam to replace once backends expose
// structured errors instead of free text.
var (
	authSignals = []string{
		"401",
		"403",
		"authentication",
		"authorization failed",
		"invalid username or password",
		"could not read username",
		"permission denied (publickey)",
		"access denied",
		"invalid credentials",
		"bad credentials",
	}
	networkSignals = []string{
		"could not resolve host",
		"connection refused",
		"connection timed out",
		"connection reset",
		"network is unreachable",
		"operation timed out",
		"no route to host",
		"unable to access",
		"i/o timeout",
	}
	conflictSignals = []string{
		"merge conflict",
		"automatic merge failed",
		"fix conflicts",
		"needs merge",
		"conflict",
	}
	nonFastForwardSignals = []string{
		"non-fast-forward",
		"fetch first",
		"updates were rejected",
		"failed to push some refs",
	}
	cancelledSignals = []string{
		"context canceled",
		"context cancelled",
		"operation was canceled",
		"cancelled",
	}
)

// Classify maps a backend failure message onto a FailureKind. Conflicts are
// checked before non-fast-forward because rejected pushes often mention
// both kinds of text.
func Classify(message string) FailureKind {
	msg := strings.ToLower(message)
	if msg == "" {
		return FailureUnknown
	}
	for _, s := range cancelledSignals {
		if strings.Contains(msg, s) {
			return FailureCancelled
		}
	}
	for _, s := range authSignals {
		if strings.Contains(msg, s) {
			return FailureAuth
		}
	}
	for _, s := range conflictSignals {
		if strings.Contains(msg, s) {
			return FailureConflict
		}
	}
	for _, s := range nonFastForwardSignals {
		if strings.Contains(msg, s) {
			return FailureNonFastForward
		}
	}
	for _, s := range networkSignals {
		if strings.Contains(msg, s) {
			return FailureNetwork
		}
	}
	return FailureUnknown
}
