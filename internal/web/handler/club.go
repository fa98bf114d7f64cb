package handler

import (
	"errors"
	"net/http"

	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/services/club"
	"github.com/mcoot/pokersession/internal/web/middleware"
	"github.com/mcoot/pokersession/internal/web/view"
)

// ClubHandler handles onboarding and the account page
type ClubHandler struct {
	clubService *club.Service
}

// NewClubHandler creates a new ClubHandler
func NewClubHandler(clubService *club.Service) *ClubHandler {
	return &ClubHandler{clubService: clubService}
}

// JoinPage renders the onboarding page
func (h *ClubHandler) JoinPage(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity != nil && identity.HasClub() {
		http.Redirect(w, r, "/sessions", http.StatusSeeOther)
		return
	}
	h.renderJoin(w, r, "")
}

// Join handles the join and create-club forms
func (h *ClubHandler) Join(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if err := r.ParseForm(); err != nil {
		h.renderJoin(w, r, "Invalid form data")
		return
	}

	var (
		c   *model.Club
		err error
	)
	if r.FormValue("action") == "create" {
		c, err = h.clubService.CreateClub(r.Context(), identity.UserID, r.FormValue("name"))
	} else {
		c, err = h.clubService.JoinClub(r.Context(), identity.UserID, r.FormValue("join_code"))
	}

	if err != nil {
		switch {
		case errors.Is(err, model.ErrClubNotFound):
			h.renderJoin(w, r, "No club has that join code")
		case errors.Is(err, model.ErrInvalidClubName):
			h.renderJoin(w, r, "Club name is required")
		case errors.Is(err, model.ErrAlreadyInClub):
			http.Redirect(w, r, "/sessions", http.StatusSeeOther)
		default:
			renderError(w, r, http.StatusInternalServerError, "Could not join the club")
		}
		return
	}

	middleware.SetFlash(w, "success", "Welcome to "+c.Name)
	http.Redirect(w, r, "/sessions", http.StatusSeeOther)
}

// Account renders the account page
func (h *ClubHandler) Account(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	c, err := h.clubService.MembershipOf(r.Context(), identity.UserID)
	if err != nil && !errors.Is(err, model.ErrNotClubMember) {
		renderError(w, r, http.StatusInternalServerError, "Could not load your club")
		return
	}

	render(w, r, http.StatusOK, view.Account(view.AccountData{
		PageData: pageData(r, "Account"),
		Club:     c,
	}))
}

func (h *ClubHandler) renderJoin(w http.ResponseWriter, r *http.Request, errMsg string) {
	render(w, r, http.StatusOK, view.Join(view.JoinData{
		PageData: pageData(r, "Join a club"),
		Error:    errMsg,
	}))
}
