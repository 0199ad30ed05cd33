package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/bookkeeper/internal/metrics"
	"github.com/ziadkadry99/bookkeeper/internal/predictor"
)

// Predict classifies q with the configured policy and threshold.
func (e *Engine) Predict(ctx context.Context, q predictor.Query) (predictor.Prediction, error) {
	return e.PredictWith(ctx, q, e.cfg.Params)
}

// PredictWith classifies q with explicit parameters. An empty policy and a
// zero TopK fall back to the configured values.
func (e *Engine) PredictWith(ctx context.Context, q predictor.Query, params predictor.Params) (predictor.Prediction, error) {
	pred, err := e.Predictor()
	if err != nil {
		return predictor.Prediction{}, err
	}

	if params.Policy == "" {
		params.Policy = e.cfg.Params.Policy
	}
	if params.TopK == 0 {
		params.TopK = e.cfg.Params.TopK
	}

	start := time.Now()
	result, err := pred.PredictWith(ctx, q, params)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		e.metrics.ObservePrediction(string(params.Policy), metrics.OutcomeError, elapsed)
		e.log.Warn("prediction failed", zap.String("merchant", q.Merchant), zap.String("product", q.Product), zap.Error(err))
		return predictor.Prediction{}, err
	case result.Found():
		e.metrics.ObservePrediction(string(params.Policy), metrics.OutcomeHit, elapsed)
	default:
		e.metrics.ObservePrediction(string(params.Policy), metrics.OutcomeMiss, elapsed)
	}

	e.log.Debug("prediction",
		zap.String("merchant", q.Merchant),
		zap.String("product", q.Product),
		zap.String("category", result.Category),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

// Similar returns up to k labelled records nearest to q.
func (e *Engine) Similar(ctx context.Context, q predictor.Query, k int) ([]predictor.Neighbor, error) {
	pred, err := e.Predictor()
	if err != nil {
		return nil, err
	}
	return pred.Neighbors(ctx, q, k)
}
