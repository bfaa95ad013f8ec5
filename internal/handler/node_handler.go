package handler

import (
	"encoding/json"
	"net/http"

	"arbor-server/internal/domain"
	"arbor-server/internal/middleware"
	"arbor-server/internal/service"
	"arbor-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type NodeHandler struct {
	service  *service.TreeService
	validate *validator.Validate
}

func NewNodeHandler(service *service.TreeService) *NodeHandler {
	return &NodeHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *NodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	node, err := h.service.CreateNode(userID, &req)
	if err != nil {
		writeTreeError(w, err)
		return
	}

	response.Created(w, node)
}

func (h *NodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["id"]
	if nodeID == "" {
		response.BadRequest(w, "Node ID is required")
		return
	}

	userID := middleware.GetUserID(r)

	node, err := h.service.GetNode(userID, nodeID)
	if err != nil {
		writeTreeError(w, err)
		return
	}

	response.Success(w, node)
}

func (h *NodeHandler) Update(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["id"]
	if nodeID == "" {
		response.BadRequest(w, "Node ID is required")
		return
	}

	var req domain.UpdateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	node, err := h.service.UpdateNode(userID, nodeID, &req)
	if err != nil {
		writeTreeError(w, err)
		return
	}

	response.Success(w, node)
}

func (h *NodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["id"]
	if nodeID == "" {
		response.BadRequest(w, "Node ID is required")
		return
	}

	userID := middleware.GetUserID(r)
	deviceID := r.URL.Query().Get("device_id")

	if err := h.service.DeleteNode(userID, nodeID, deviceID); err != nil {
		writeTreeError(w, err)
		return
	}

	response.Success(w, map[string]string{"message": "Node deleted"})
}

func (h *NodeHandler) Move(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["id"]
	if nodeID == "" {
		response.BadRequest(w, "Node ID is required")
		return
	}

	var req domain.MoveNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	node, err := h.service.MoveNode(userID, nodeID, &req)
	if err != nil {
		writeTreeError(w, err)
		return
	}

	response.Success(w, node)
}

func (h *NodeHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["id"]
	if nodeID == "" {
		response.BadRequest(w, "Node ID is required")
		return
	}

	var req domain.SnoozeReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	node, err := h.service.SnoozeReminder(userID, nodeID, &req)
	if err != nil {
		writeTreeError(w, err)
		return
	}

	response.Success(w, node)
}
