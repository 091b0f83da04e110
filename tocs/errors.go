package tocs

import "errors"

var (
	// ErrMissingToken is returned when node cannot be addressed by token.
	ErrMissingToken = errors.New("invalid node: no token")
	// ErrNoBookIndex is returned when node does not belong to any known book.
	ErrNoBookIndex = errors.New("unable to determine book index")
	// ErrBadDragTarget is returned when transfer carries no dragged node.
	ErrBadDragTarget = errors.New("bad drag target")
	// ErrBadDropTarget is returned when node is dropped nowhere.
	ErrBadDropTarget = errors.New("bad drop target")
	// ErrNoWorkspace is returned when request cannot be scoped to a workspace.
	ErrNoWorkspace = errors.New("could not get root path uri")
)
