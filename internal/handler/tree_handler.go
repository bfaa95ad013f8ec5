package handler

import (
	"encoding/json"
	"net/http"

	"arbor-server/internal/domain"
	"arbor-server/internal/middleware"
	"arbor-server/internal/service"
	"arbor-server/pkg/response"
)

type TreeHandler struct {
	service *service.TreeService
}

func NewTreeHandler(service *service.TreeService) *TreeHandler {
	return &TreeHandler{
		service: service,
	}
}

func (h *TreeHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	nodes, err := h.service.GetTree(userID)
	if err != nil {
		response.InternalError(w, "Failed to load tree")
		return
	}

	response.Success(w, nodes)
}

// Replace imports a whole forest, discarding whatever the user had before.
func (h *TreeHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req domain.ReplaceTreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	userID := middleware.GetUserID(r)

	nodes, err := h.service.ReplaceTree(userID, &req)
	if err != nil {
		writeTreeError(w, err)
		return
	}

	response.Success(w, nodes)
}
