package predictor

// Session is the result of a successful login.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// User is a backend account.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Result is the backend's answer to a prediction request.
type Result struct {
	PredictedPrice float64 `json:"predicted_price"`
	PredictionID   int64   `json:"prediction_id"`
}

// RemoteRecord is one server-side prediction record. The backend keeps its
// own history per user, reached through /history; it is unrelated to the
// locally persisted one.
type RemoteRecord struct {
	ID        int64          `json:"id"`
	Input     map[string]any `json:"input"`
	Price     float64        `json:"price"`
	Favorite  bool           `json:"favorite"`
	CreatedAt string         `json:"created_at"`
}
