package tree

import "errors"

// Sentinel errors shared by the tree engine and the mutation service; handlers
// map them to responses with errors.Is.
var (
	// ErrItemNotFound indicates the node id does not resolve anywhere in the forest.
	ErrItemNotFound = errors.New("item not found")

	// ErrParentNotFound indicates the parent id is absent or does not name a folder.
	ErrParentNotFound = errors.New("parent not found")

	// ErrNameConflict indicates a case-insensitive sibling label collision.
	ErrNameConflict = errors.New("name conflict")

	// ErrInvalidNodeType indicates a type outside folder|note|task.
	ErrInvalidNodeType = errors.New("invalid node type")

	// ErrInvalidField indicates a field that is not legal for the node's type.
	ErrInvalidField = errors.New("invalid field")
)
