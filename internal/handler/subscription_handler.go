package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"arbor-server/internal/domain"
	"arbor-server/internal/middleware"
	"arbor-server/internal/service"
	"arbor-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type SubscriptionHandler struct {
	service  *service.SubscriptionService
	validate *validator.Validate
}

func NewSubscriptionHandler(service *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	sub, err := h.service.Create(userID, &req)
	if err != nil {
		response.InternalError(w, "Failed to create subscription")
		return
	}

	response.Created(w, sub)
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	subs, err := h.service.List(userID)
	if err != nil {
		response.InternalError(w, "Failed to list subscriptions")
		return
	}

	response.Success(w, subs)
}

func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	subID := mux.Vars(r)["id"]
	if subID == "" {
		response.BadRequest(w, "Subscription ID is required")
		return
	}

	userID := middleware.GetUserID(r)

	if err := h.service.Delete(userID, subID); err != nil {
		if strings.HasPrefix(err.Error(), "unauthorized") {
			response.Forbidden(w, err.Error())
			return
		}
		response.NotFound(w, "Subscription not found")
		return
	}

	response.Success(w, map[string]string{"message": "Subscription deleted"})
}
