package forecast

import (
	"math"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/burst"
	"MarketPulse/internal/services/features"
	"MarketPulse/internal/services/gbm"
	"MarketPulse/internal/services/momentum"
	"MarketPulse/internal/services/series"
	"MarketPulse/pkg/logger"
)

// Train cleans history and fits a fresh State for productID. Histories with
// fewer than the configured minimum rows get a cold-start state instead of a
// fitted model. Missing dates fail with ErrDataFormat; a history with no
// positive quantity fails with ErrInsufficientData.
func (e *Engine) Train(productID string, history []models.SalesRecord) (*State, models.TrainingResult, error) {
	start := time.Now()
	s, err := e.train(productID, history)
	mode := models.ModeUntrained
	if s != nil {
		mode = s.Mode
	}
	e.metrics.RecordTraining(string(mode), time.Since(start), err)
	if err != nil {
		e.log.Warn("training rejected", logger.String("product_id", productID), logger.Error(err))
		return nil, models.TrainingResult{ProductID: productID, Mode: mode}, err
	}

	res := models.TrainingResult{
		Success:        true,
		ProductID:      productID,
		Mode:           s.Mode,
		Metrics:        s.Metrics,
		Weights:        s.Weights,
		Features:       s.Features,
		Physics:        s.Physics,
		Recommendation: e.Recommend(s),
		Duration:       time.Since(start),
	}
	fields := []logger.Field{
		logger.String("product_id", productID),
		logger.String("mode", string(s.Mode)),
		logger.Int("rows", s.TrainingRows),
		logger.Float64("val_mae", s.Metrics.ValMAE),
		logger.Float64("model_weight", s.Weights.Model),
		logger.Duration("took_ms", res.Duration),
	}
	if s.Metrics.BaselineMAE != nil {
		fields = append(fields,
			logger.Float64("baseline_mae", *s.Metrics.BaselineMAE),
			logger.Float64("improvement_pct", s.Metrics.ImprovementPct))
	}
	e.log.Info("model trained", fields...)
	return s, res, nil
}

func (e *Engine) train(productID string, history []models.SalesRecord) (*State, error) {
	dates, q, err := e.clean(productID, history)
	if err != nil {
		return nil, err
	}
	n := len(q)
	s := &State{
		ProductID:    productID,
		LastDate:     dates[n-1],
		TrainingRows: n,
		TrainedAt:    e.clock().UTC(),
		Physics:      e.physics(dates, q),
	}

	if n < e.cfg.Trainer.MinTrainingRows {
		e.log.Info("history below training minimum, using cold start",
			logger.String("product_id", productID), logger.Int("rows", n),
			logger.Int("min_rows", e.cfg.Trainer.MinTrainingRows))
		e.coldStart(s, dates, q)
		return s, nil
	}
	if err := e.fit(s, dates, q); err != nil {
		e.log.Warn("model fit failed, using cold start",
			logger.String("product_id", productID), logger.Error(err))
		e.coldStart(s, dates, q)
	}
	return s, nil
}

func (e *Engine) physics(dates []time.Time, q []float64) models.PhysicsMetrics {
	m := momentum.Analyze(q, e.cfg.Momentum)
	b := e.burst.Detect(dates, q)
	return models.PhysicsMetrics{
		Momentum:      m,
		Burst:         b,
		PriorityScore: burst.PriorityScore(m, b, e.cfg.Priority),
	}
}

// fit runs the learned path: tail validation split, booster fit, error and
// baseline metrics, ensemble weights and the next-day seed row.
func (e *Engine) fit(s *State, dates []time.Time, q []float64) error {
	n := len(q)
	s.Stats = e.features.ComputeStats(dates, q)
	frame := e.features.Build(dates, q)
	cols := features.ColumnsFor(n)
	x := frame.Matrix(cols)

	nVal := validationSize(n)
	nTrain := n - nVal
	// row 0 has no history behind its lag and rolling columns
	xTrain, yTrain := x[1:max(nTrain, 1)], q[1:max(nTrain, 1)]
	if len(yTrain) < 2 {
		return newError(ErrInsufficientData, s.ProductID, "fit", "%d rows leave %d for training", n, len(yTrain))
	}

	booster := gbm.NewBooster(HyperParams(len(yTrain), e.cfg.Trainer.Seed))
	if err := booster.Fit(xTrain, yTrain); err != nil {
		return err
	}
	predTrain, err := booster.PredictBatch(xTrain)
	if err != nil {
		return err
	}
	predVal, err := booster.PredictBatch(x[nTrain:])
	if err != nil {
		return err
	}
	clampNonNegative(predTrain)
	clampNonNegative(predVal)

	yVal := q[nTrain:]
	m := models.TrainingMetrics{
		TrainMAE:  series.MAE(yTrain, predTrain),
		ValMAE:    series.MAE(yVal, predVal),
		TrainRows: len(yTrain),
		ValRows:   nVal,
	}
	if s.Stats.Mean > 0 {
		m.NormalizedValMAE = m.ValMAE / s.Stats.Mean
	}
	residuals := make([]float64, nVal)
	for i := range yVal {
		residuals[i] = yVal[i] - predVal[i]
	}
	m.StdError = series.Or(series.PopStd(residuals), 0)
	if m.StdError == 0 {
		m.StdError = 0.3 * s.Stats.Mean
	}
	m.OverfitRatio = 1
	if m.TrainMAE > 0 {
		m.OverfitRatio = m.ValMAE / m.TrainMAE
	}
	m.ValRMSE, m.ValMAPE, m.R2 = regressionScores(yVal, predVal)
	m.Accuracy = math.Max(0, 100-m.ValMAPE)

	baseline := e.baselineMAE(frame, nTrain, yVal)
	m.BaselineMAE = &baseline
	if baseline > 0 {
		m.ImprovementPct = (1 - m.ValMAE/baseline) * 100
	}

	if m.OverfitRatio > e.cfg.Trainer.OverfitWarn {
		e.log.Warn("validation error far above training error",
			logger.String("product_id", s.ProductID),
			logger.Float64("overfit_ratio", m.OverfitRatio))
	}

	s.Mode = models.ModeMLTrained
	s.Model = booster
	s.Features = cols
	s.Metrics = m
	s.Weights = EnsembleWeights(m.ImprovementPct, s.Stats.CV, m.OverfitRatio, e.cfg.Ensemble)
	s.LastRow = e.features.NextRow(dates, q)
	return nil
}

// baselineMAE is the hardest of the naive estimators (rolling mean, yesterday,
// weekday average) on the validation rows, discounted slightly.
func (e *Engine) baselineMAE(frame *features.Frame, nTrain int, yVal []float64) float64 {
	worst := 0.0
	for _, col := range []string{features.RollMean7, features.Lag1, features.DowAvg} {
		worst = math.Max(worst, series.MAE(yVal, frame.Columns[col][nTrain:]))
	}
	return worst * e.cfg.Trainer.BaselineDiscount
}

func regressionScores(y, pred []float64) (rmse, mape, r2 float64) {
	if len(y) == 0 {
		return 0, 0, 0
	}
	mean := series.Mean(y)
	var sse, sst, ape float64
	nz := 0
	for i := range y {
		d := y[i] - pred[i]
		sse += d * d
		sst += (y[i] - mean) * (y[i] - mean)
		if y[i] != 0 {
			ape += math.Abs(d / y[i])
			nz++
		}
	}
	rmse = math.Sqrt(sse / float64(len(y)))
	if nz > 0 {
		mape = ape / float64(nz) * 100
	}
	if sst > 0 {
		r2 = 1 - sse/sst
	}
	return rmse, mape, r2
}

func clampNonNegative(v []float64) {
	for i := range v {
		if v[i] < 0 || math.IsNaN(v[i]) {
			v[i] = 0
		}
	}
}
