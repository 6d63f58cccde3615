package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordTraining("ML_TRAINED", 10*time.Millisecond, nil)
	r.RecordTraining("COLD_START", time.Millisecond, errors.New("boom"))
	r.RecordPrediction(7, time.Millisecond)
	r.RecordPrediction(30, time.Millisecond)
	r.RecordInferenceFallback()
	r.RecordSaveRefused()
	r.RecordRegistry(true)
	r.RecordRegistry(false)
	r.RecordRegistry(false)
	r.RecordMessage("sales.events")
	r.RecordError("consumer", "data_format")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.trainings.WithLabelValues("ML_TRAINED", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.trainings.WithLabelValues("COLD_START", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.predictions.WithLabelValues("week")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.predictions.WithLabelValues("month")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.saveRefused))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.registry.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.messages.WithLabelValues("sales.events")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("consumer", "data_format")))
}
