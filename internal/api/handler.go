package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/ShalihaZarook05/Flat-price-prediction/internal/history"
	"github.com/ShalihaZarook05/Flat-price-prediction/internal/predictor"
)

const maxRequestBodySize = 1 << 20 // 1MB

// PricePredictor is the slice of the backend client the API needs.
type PricePredictor interface {
	Predict(ctx context.Context, input map[string]any) (predictor.Result, error)
}

// Deps carries the collaborators for the loopback HTTP API.
type Deps struct {
	History   *history.Store
	Predictor PricePredictor
	Token     string
	// PredictLimit throttles POST /predict. Nil disables limiting.
	PredictLimit *rate.Limiter
	Logger       *slog.Logger
}

// NewHandler builds the HTTP API. Everything except /health requires the
// local bearer token.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.With(rateLimit(deps.PredictLimit)).Post("/predict", deps.handlePredict)

		r.Get("/history", deps.handleHistory)
		r.Get("/history/favorites", deps.handleFavorites)
		r.Post("/history/reload", deps.handleReload)
		r.Delete("/history", deps.handleClear)
		r.Put("/history/{id}/favorite", deps.handleToggleFavorite)
		r.Delete("/history/{id}", deps.handleRemove)
	})

	return r
}

// recordJSON is the API view of a history record. It matches the persisted
// shape so clients see one format everywhere.
type recordJSON struct {
	ID             string         `json:"id"`
	Input          map[string]any `json:"input"`
	PredictedPrice float64        `json:"predictedPrice"`
	Timestamp      string         `json:"timestamp"`
	IsFavorite     bool           `json:"isFavorite"`
}

func toRecordJSON(r history.Record) recordJSON {
	input := r.Input
	if input == nil {
		input = map[string]any{}
	}
	return recordJSON{
		ID:             r.ID,
		Input:          input,
		PredictedPrice: r.PredictedPrice,
		Timestamp:      r.Timestamp.UTC().Format(time.RFC3339Nano),
		IsFavorite:     r.IsFavorite,
	}
}

func toRecordList(records []history.Record) []recordJSON {
	out := make([]recordJSON, len(records))
	for i, r := range records {
		out[i] = toRecordJSON(r)
	}
	return out
}

func (d Deps) handlePredict(w http.ResponseWriter, r *http.Request) {
	var input map[string]any
	body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(body).Decode(&input); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request", "request body must be a JSON object of property attributes")
		return
	}

	result, err := d.Predictor.Predict(r.Context(), input)
	if err != nil {
		var apiErr *predictor.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			httpError(w, apiErr.Status, "backend_rejected", apiErr.Message)
			return
		}
		d.Logger.Error("prediction request failed", "error", err)
		httpError(w, http.StatusBadGateway, "backend_unavailable", "prediction backend did not respond")
		return
	}

	rec := d.History.AddPrediction(input, result.PredictedPrice)
	writeJSON(w, http.StatusOK, map[string]any{
		"record":          toRecordJSON(rec),
		"predicted_price": result.PredictedPrice,
		"prediction_id":   result.PredictionID,
	})
}

func (d Deps) handleHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"items":   toRecordList(d.History.Items()),
		"loading": d.History.Loading(),
	})
}

func (d Deps) handleFavorites(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"items": toRecordList(d.History.Favorites()),
	})
}

func (d Deps) handleReload(w http.ResponseWriter, _ *http.Request) {
	d.History.Reload()
	writeJSON(w, http.StatusOK, map[string]any{
		"items": toRecordList(d.History.Items()),
	})
}

func (d Deps) handleClear(w http.ResponseWriter, _ *http.Request) {
	d.History.ClearAll()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// Unknown ids are silent no-ops in the store, so both mutation handlers
// answer 200 regardless.
func (d Deps) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	d.History.ToggleFavorite(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (d Deps) handleRemove(w http.ResponseWriter, r *http.Request) {
	d.History.Remove(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l != nil && !l.Allow() {
				httpError(w, http.StatusTooManyRequests, "rate_limited", "too many prediction requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"message": message,
			"type":    errType,
		},
	})
}
