package handler

import (
	"errors"
	"net/http"

	"arbor-server/internal/tree"
	"arbor-server/pkg/response"
)

// writeTreeError maps the tree engine's sentinel errors to responses.
func writeTreeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tree.ErrItemNotFound):
		response.NotFound(w, "Item not found")
	case errors.Is(err, tree.ErrParentNotFound):
		response.NotFound(w, "Parent not found")
	case errors.Is(err, tree.ErrNameConflict):
		response.Error(w, http.StatusConflict, "A sibling with this name already exists")
	case errors.Is(err, tree.ErrInvalidNodeType):
		response.BadRequest(w, "Invalid node type")
	case errors.Is(err, tree.ErrInvalidField):
		response.BadRequest(w, "Field not valid for this node type")
	default:
		response.InternalError(w, "Internal server error")
	}
}
