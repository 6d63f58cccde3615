package forecast

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/calendar"
	"MarketPulse/internal/services/series"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"
)

// RecordsFromRows converts loosely typed rows (CSV or JSON decoded) into
// sales records. Both "date" and "quantity" must be present on every row.
func RecordsFromRows(productID string, rows []map[string]any) ([]models.SalesRecord, error) {
	out := make([]models.SalesRecord, 0, len(rows))
	for i, row := range rows {
		var missing []string
		rawDate, ok := row["date"]
		if !ok || rawDate == nil {
			missing = append(missing, "date")
		}
		rawQty, ok := row["quantity"]
		if !ok || rawQty == nil {
			missing = append(missing, "quantity")
		}
		if len(missing) > 0 {
			return nil, newError(ErrDataFormat, productID, "parse rows",
				"row %d of %d is missing required fields %s", i, len(rows), strings.Join(missing, ", "))
		}

		date, err := toDate(rawDate)
		if err != nil {
			return nil, newError(ErrDataFormat, productID, "parse rows", "row %d: %v", i, err)
		}
		qty, err := toFloat(rawQty)
		if err != nil {
			return nil, newError(ErrDataFormat, productID, "parse rows", "row %d: %v", i, err)
		}
		out = append(out, models.SalesRecord{Date: date, Quantity: qty})
	}
	return out, nil
}

func toDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return calendar.Day(d), nil
	case string:
		if t, ok := util.ParseDate(d); ok {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("unrecognised date %q", d)
	default:
		return time.Time{}, fmt.Errorf("date has unsupported type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch q := v.(type) {
	case float64:
		return q, nil
	case float32:
		return float64(q), nil
	case int:
		return float64(q), nil
	case int64:
		return float64(q), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(q), 64)
		if err != nil {
			return 0, fmt.Errorf("quantity %q is not numeric", q)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("quantity has unsupported type %T", v)
	}
}

// clean sorts by date, keeps the last record per calendar day and only then
// drops days whose surviving quantity is non-positive or non-finite. A later
// correction to zero therefore removes the day instead of being ignored.
func (e *Engine) clean(productID string, history []models.SalesRecord) ([]time.Time, []float64, error) {
	if len(history) == 0 {
		return nil, nil, newError(ErrInsufficientData, productID, "train", "history is empty")
	}
	for i, r := range history {
		if r.Date.IsZero() {
			return nil, nil, newError(ErrDataFormat, productID, "train",
				"record %d of %d has no date", i, len(history))
		}
	}

	type indexed struct {
		day time.Time
		q   float64
		pos int
	}
	rows := make([]indexed, len(history))
	for i, r := range history {
		rows[i] = indexed{day: calendar.Day(r.Date), q: r.Quantity, pos: i}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].day.Equal(rows[j].day) {
			return rows[i].pos < rows[j].pos
		}
		return rows[i].day.Before(rows[j].day)
	})

	latest := rows[:0]
	for _, r := range rows {
		if n := len(latest); n > 0 && latest[n-1].day.Equal(r.day) {
			latest[n-1] = r
			continue
		}
		latest = append(latest, r)
	}

	dates := make([]time.Time, 0, len(latest))
	q := make([]float64, 0, len(latest))
	dropped := 0
	for _, r := range latest {
		if !series.Finite(r.q) || r.q <= 0 {
			dropped++
			continue
		}
		dates = append(dates, r.day)
		q = append(q, r.q)
	}
	if len(q) == 0 {
		return nil, nil, newError(ErrInsufficientData, productID, "train",
			"0 of %d days have a positive quantity", len(latest))
	}

	if z := e.cfg.Trainer.OutlierZ; z > 0 {
		dates, q = RemoveOutliers(dates, q, z)
	}
	if dropped > 0 {
		e.log.Debug("dropped non-positive days",
			logger.String("product_id", productID), logger.Int("dropped", dropped))
	}
	return dates, q, nil
}

// RemoveOutliers drops points whose z-score exceeds z. Series shorter than
// 10 points are returned unchanged.
func RemoveOutliers(dates []time.Time, q []float64, z float64) ([]time.Time, []float64) {
	if len(q) < 10 || z <= 0 {
		return dates, q
	}
	mean, std := series.Mean(q), series.SampleStd(q)
	if !series.Finite(std) || std == 0 {
		return dates, q
	}
	outDates := make([]time.Time, 0, len(q))
	outQ := make([]float64, 0, len(q))
	for i, v := range q {
		if math.Abs(v-mean)/std > z {
			continue
		}
		outDates = append(outDates, dates[i])
		outQ = append(outQ, v)
	}
	return outDates, outQ
}
