package request

// CreateGuestRequest is the request body for creating a guest identity
type CreateGuestRequest struct {
	DisplayName string `json:"display_name"`
}

// RegisterRequest is the request body for registering an account
type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateClubRequest is the request body for creating a club
type CreateClubRequest struct {
	Name string `json:"name"`
}

// JoinClubRequest is the request body for joining a club by code
type JoinClubRequest struct {
	JoinCode string `json:"join_code"`
}

// CreateSessionRequest is the request body for creating a session.
// Currency defaults to USD when empty.
type CreateSessionRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency,omitempty"`
}

// AddPlayerRequest is the request body for seating a player
type AddPlayerRequest struct {
	Name string `json:"name"`
	// LinkSelf links the new player to the caller's account
	LinkSelf bool `json:"link_self,omitempty"`
}

// RecordTransactionRequest is the request body for recording a buy-in or cash-out
type RecordTransactionRequest struct {
	PlayerID string  `json:"player_id"`
	Type     string  `json:"type"`
	Amount   float64 `json:"amount"`
}
