package admin

// Session is the result of a successful admin login.
type Session struct {
	Token string `json:"token"`
	Admin Admin  `json:"admin"`
}

// Admin is a backend administrator account.
type Admin struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
}

// User is a registered account as seen by the admin surface.
type User struct {
	ID              int64  `json:"id"`
	Email           string `json:"email"`
	IsBlocked       bool   `json:"is_blocked"`
	CreatedAt       string `json:"created_at"`
	PredictionCount int    `json:"prediction_count"`
}

// Prediction is one prediction record across all users.
type Prediction struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	UserEmail string         `json:"user_email"`
	Input     map[string]any `json:"input"`
	Price     float64        `json:"price"`
	Favorite  bool           `json:"favorite"`
	CreatedAt string         `json:"created_at"`
}

// Stats is the aggregate dashboard payload.
type Stats struct {
	TotalUsers             int     `json:"total_users"`
	TotalPredictions       int     `json:"total_predictions"`
	AvgPrice               float64 `json:"avg_price"`
	MaxPrice               float64 `json:"max_price"`
	MinPrice               float64 `json:"min_price"`
	RecentUsersCount       int     `json:"recent_users_count"`
	RecentPredictionsCount int     `json:"recent_predictions_count"`
}

// ModelInfo is metadata about the deployed model.
type ModelInfo struct {
	ModelType        string   `json:"model_type"`
	FeaturesCount    int      `json:"features_count"`
	FeatureNames     []string `json:"feature_names"`
	LastTrained      string   `json:"last_trained"`
	Accuracy         string   `json:"accuracy"`
	TotalPredictions int      `json:"total_predictions"`
}

// Dashboard bundles the admin overview fetched in one call.
type Dashboard struct {
	Stats       Stats
	Users       []User
	Predictions []Prediction
}
