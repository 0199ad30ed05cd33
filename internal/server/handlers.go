package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ziadkadry99/bookkeeper/internal/errortypes"
	"github.com/ziadkadry99/bookkeeper/internal/predictor"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps err onto a status code by its errortypes classification.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		status = http.StatusRequestEntityTooLarge
	case errortypes.IsType(err, errortypes.ErrorTypeValidation):
		status = http.StatusBadRequest
	case errortypes.IsType(err, errortypes.ErrorTypeConfig):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeMessage(w, status, err.Error())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "running",
		"version":     s.cfg.Version,
		"collection":  s.engine.Collection(),
		"initialized": s.engine.Initialized(),
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.engine.ListCategories(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": categories})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// predictRequest is the body of POST /predict. merchant and product are
// required; the remaining fields override the configured parameters.
type predictRequest struct {
	Merchant      *string  `json:"merchant"`
	Product       *string  `json:"product"`
	PaymentMethod string   `json:"payment_method"`
	Direction     string   `json:"direction"`
	Policy        string   `json:"policy"`
	TopK          int      `json:"top_k"`
	Threshold     *float64 `json:"threshold"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Merchant == nil || req.Product == nil {
		writeMessage(w, http.StatusBadRequest, "merchant and product are required")
		return
	}

	params := s.engine.Params()
	if req.Policy != "" {
		policy, err := predictor.ParsePolicy(req.Policy)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		params.Policy = policy
	}
	if req.TopK != 0 {
		params.TopK = req.TopK
	}
	if req.Threshold != nil {
		params.Threshold = *req.Threshold
	}

	pred, err := s.engine.PredictWith(r.Context(), predictor.Query{
		Merchant:      *req.Merchant,
		Product:       *req.Product,
		PaymentMethod: req.PaymentMethod,
		Direction:     req.Direction,
	}, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}
