package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/pokersession/internal/api/middleware"
	"github.com/mcoot/pokersession/internal/api/request"
	"github.com/mcoot/pokersession/internal/api/response"
	"github.com/mcoot/pokersession/internal/services/club"
)

// ClubHandler handles onboarding endpoints
type ClubHandler struct {
	clubService *club.Service
}

// NewClubHandler creates a new club handler
func NewClubHandler(clubService *club.Service) *ClubHandler {
	return &ClubHandler{clubService: clubService}
}

// Create handles POST /api/v1/clubs
func (h *ClubHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	var req request.CreateClubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	c, err := h.clubService.CreateClub(r.Context(), identity.UserID, req.Name)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.ClubFromModel(c))
}

// Join handles POST /api/v1/clubs/join
func (h *ClubHandler) Join(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	var req request.JoinClubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.JoinCode == "" {
		WriteError(w, NewInvalidRequestError("join_code is required"))
		return
	}

	c, err := h.clubService.JoinClub(r.Context(), identity.UserID, req.JoinCode)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ClubFromModel(c))
}

// GetMine handles GET /api/v1/clubs/me
func (h *ClubHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	c, err := h.clubService.MembershipOf(r.Context(), identity.UserID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ClubFromModel(c))
}
