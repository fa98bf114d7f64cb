package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/services/auth"
	"github.com/mcoot/pokersession/internal/services/club"
	"github.com/mcoot/pokersession/internal/services/lifecycle"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// Reason carries the gate reason code when Code is GATE_DENIED
	Reason  string   `json:"reason,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeGateDenied             = "GATE_DENIED"
	CodeTransitionInProgress   = "TRANSITION_IN_PROGRESS"
	CodeSessionNotFound        = "SESSION_NOT_FOUND"
	CodePlayerNotFound         = "PLAYER_NOT_FOUND"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodeClubNotFound           = "CLUB_NOT_FOUND"
	CodeSessionFinalized       = "SESSION_FINALIZED"
	CodeChipEntryStarted       = "CHIP_ENTRY_ALREADY_STARTED"
	CodeChipEntryNotStarted    = "CHIP_ENTRY_NOT_STARTED"
	CodeRosterIncomplete       = "ROSTER_INCOMPLETE"
	CodeTransitionFailed       = "TRANSITION_FAILED"
	CodePlayerHasTransactions  = "PLAYER_HAS_TRANSACTIONS"
	CodeInvalidAmount          = "INVALID_AMOUNT"
	CodeInvalidTransactionType = "INVALID_TRANSACTION_TYPE"
	CodeInvalidCurrency        = "INVALID_CURRENCY"
	CodeInvalidName            = "INVALID_NAME"
	CodeAlreadyInClub          = "ALREADY_IN_CLUB"
	CodeNotClubMember          = "NOT_CLUB_MEMBER"
	CodeUsernameExists         = "USERNAME_EXISTS"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeInternalError          = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// StatusOf returns the HTTP status an error maps to
func StatusOf(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}
	// The message already reads "Failed to <transition>: <cause>"
	var we *lifecycle.WriteError
	if errors.As(err, &we) {
		return &httpError{http.StatusInternalServerError, APIError{Code: CodeTransitionFailed, Message: we.Error()}}
	}

	// Map model errors
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeSessionNotFound, Message: "Session not found"}}
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodePlayerNotFound, Message: "Player not found"}}
	case errors.Is(err, model.ErrUserNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeUserNotFound, Message: "User not found"}}
	case errors.Is(err, model.ErrClubNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeClubNotFound, Message: "Club not found"}}
	case errors.Is(err, model.ErrTransitionInProgress):
		return &httpError{http.StatusConflict, APIError{Code: CodeTransitionInProgress, Message: "A stage transition is already in progress"}}
	case errors.Is(err, model.ErrSessionFinalized):
		return &httpError{http.StatusConflict, APIError{Code: CodeSessionFinalized, Message: "Session is finalized"}}
	case errors.Is(err, model.ErrChipEntryAlreadyStarted):
		return &httpError{http.StatusConflict, APIError{Code: CodeChipEntryStarted, Message: err.Error()}}
	case errors.Is(err, model.ErrChipEntryNotStarted):
		return &httpError{http.StatusConflict, APIError{Code: CodeChipEntryNotStarted, Message: "Chip entry has not started"}}
	case errors.Is(err, model.ErrRosterIncomplete):
		return &httpError{http.StatusConflict, APIError{Code: CodeRosterIncomplete, Message: "Every player needs a buy-in before chip entry"}}
	case errors.Is(err, model.ErrPlayerHasTransactions):
		return &httpError{http.StatusConflict, APIError{Code: CodePlayerHasTransactions, Message: "Player has recorded transactions"}}
	case errors.Is(err, model.ErrInvalidAmount):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidAmount, Message: "Amount must be a non-negative number"}}
	case errors.Is(err, model.ErrInvalidTransactionType):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidTransactionType, Message: "Type must be buyin or cashout"}}
	case errors.Is(err, model.ErrInvalidCurrency):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidCurrency, Message: "Currency must be USD, ILS or EUR"}}
	case errors.Is(err, model.ErrInvalidSessionName),
		errors.Is(err, model.ErrInvalidPlayerName),
		errors.Is(err, model.ErrInvalidClubName):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidName, Message: err.Error()}}
	case errors.Is(err, model.ErrAlreadyInClub):
		return &httpError{http.StatusConflict, APIError{Code: CodeAlreadyInClub, Message: "Already a member of a club"}}
	case errors.Is(err, model.ErrNotClubMember):
		return &httpError{http.StatusForbidden, APIError{Code: CodeNotClubMember, Message: "Not a member of this club"}}

	// Map auth errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{Code: CodeInvalidCredentials, Message: "Invalid username or password"}}
	case errors.Is(err, auth.ErrInvalidToken):
		return &httpError{http.StatusUnauthorized, APIError{Code: CodeUnauthorized, Message: "Invalid or expired token"}}
	case errors.Is(err, auth.ErrUsernameExists):
		return &httpError{http.StatusConflict, APIError{Code: CodeUsernameExists, Message: "Username already exists"}}
	case errors.Is(err, auth.ErrInvalidUsername),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidDisplayName):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Message: err.Error()}}
	case errors.Is(err, club.ErrJoinCodeExhausted):
		return &httpError{http.StatusServiceUnavailable, APIError{Code: CodeInternalError, Message: "Could not allocate a join code, try again"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Message: message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{Code: CodeUnauthorized, Message: "Authentication required"}}
}

// NewOnboardingRequiredError is returned to identities that have not joined a club yet
func NewOnboardingRequiredError() error {
	return &httpError{http.StatusForbidden, APIError{Code: CodeForbidden, Message: "Join or create a club first"}}
}

// NewGateDeniedError reports a denied stage transition with its reason code and rendered message
func NewGateDeniedError(reason, message string, missing []string) error {
	return &httpError{http.StatusConflict, APIError{
		Code:    CodeGateDenied,
		Message: message,
		Reason:  reason,
		Missing: missing,
	}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
}
