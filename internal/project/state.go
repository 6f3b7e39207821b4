package project

import "fmt"

// State is the resolution state of a project context.
//
//	Unresolved -> Resolving -> Pending | Finalized
//	Pending    -> Resolving
//	Resolving  -> Unresolved (resolution failed)
//
// Finalized is terminal.
type State int

const (
	// StateUnresolved has never been resolved, or its last resolution failed.
	StateUnresolved State = iota
	// StateResolving is being resolved; re-entry is a cycle.
	StateResolving
	// StatePending was resolved but left for its caller to finalize.
	StatePending
	// StateFinalized has a cached, authoritative module.
	StateFinalized
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateResolving:
		return "resolving"
	case StatePending:
		return "pending"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
