package project

import "errors"

var (
	// ErrUnknownKind is returned for artifact kinds outside the known set.
	ErrUnknownKind = errors.New("unknown artifact kind")

	// ErrUnknownOption is returned when setting an API option that does not exist.
	ErrUnknownOption = errors.New("unknown api option")

	// ErrInvalidOption is returned when an API option value has the wrong type.
	ErrInvalidOption = errors.New("invalid api option value")

	// ErrCycle is returned when a project is entered again while it is still
	// being resolved, e.g. plugins that declare each other.
	ErrCycle = errors.New("cyclic api module resolution")

	// ErrFinalized is returned when resolution is started on a finalized project.
	ErrFinalized = errors.New("project already finalized")
)
