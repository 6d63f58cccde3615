package usecase

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/kafka"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/queue"
	"MarketPulse/pkg/util"
	"MarketPulse/pkg/validate"
)

// Throttle decides whether a product may be retrained now.
type Throttle interface {
	Allow(productID string) bool
}

// SalesEventsHandler stores incoming sales and schedules a retrain for the
// product, at most once per throttle window.
type SalesEventsHandler struct {
	topic    string
	sales    drepo.SalesHistoryStore
	jobs     queue.Enqueuer
	throttle Throttle
	svc      *ForecastService
	metrics  drepo.Metrics
	log      *logger.Logger
}

var _ kafka.MessageHandler = (*SalesEventsHandler)(nil)

func NewSalesEventsHandler(
	topic string,
	sales drepo.SalesHistoryStore,
	jobs queue.Enqueuer,
	throttle Throttle,
	svc *ForecastService,
	metrics drepo.Metrics,
	l *logger.Logger,
) *SalesEventsHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = logger.Nop()
	}
	return &SalesEventsHandler{
		topic:    topic,
		sales:    sales,
		jobs:     jobs,
		throttle: throttle,
		svc:      svc,
		metrics:  metrics,
		log:      l,
	}
}

func (h *SalesEventsHandler) Topic() string { return h.topic }

// Handle accepts a single event object or an array of them.
func (h *SalesEventsHandler) Handle(ctx context.Context, b []byte) error {
	events, err := decodeEvents(b)
	if err != nil {
		h.metrics.RecordError("sales_consumer", "unmarshal")
		return kafka.Permanent(fmt.Errorf("decode sales event: %w", err))
	}

	byProduct := make(map[string][]models.SalesRecord)
	var order []string
	for i := range events {
		ev := &events[i]
		if err := validate.Check(ev); err != nil {
			h.metrics.RecordError("sales_consumer", "validation")
			return kafka.Permanent(err)
		}
		day, ok := util.ParseDate(ev.Date)
		if !ok {
			h.metrics.RecordError("sales_consumer", "date")
			return kafka.Permanent(fmt.Errorf("sales event %s: unparseable date %q", ev.ProductID, ev.Date))
		}
		if _, seen := byProduct[ev.ProductID]; !seen {
			order = append(order, ev.ProductID)
		}
		byProduct[ev.ProductID] = append(byProduct[ev.ProductID], models.SalesRecord{Date: day, Quantity: ev.Quantity})
	}

	var due []string
	for _, pid := range order {
		if err := h.sales.Append(ctx, pid, byProduct[pid]); err != nil {
			h.metrics.RecordError("sales_consumer", "store")
			return fmt.Errorf("store sales %s: %w", pid, err)
		}
		h.metrics.RecordMessage(h.topic)

		if h.throttle != nil && !h.throttle.Allow(pid) {
			h.log.Debug("retrain throttled", logger.String("product_id", pid))
			continue
		}
		due = append(due, pid)
	}
	h.enqueue(ctx, due)
	return nil
}

// enqueue schedules one retrain for a single product and a batch for more.
func (h *SalesEventsHandler) enqueue(ctx context.Context, due []string) {
	var err error
	switch len(due) {
	case 0:
		return
	case 1:
		err = h.jobs.Enqueue(ctx, RetrainJobType, h.svc.NewJob(due[0], "sales_event"))
	default:
		err = h.jobs.Enqueue(ctx, RetrainBatchJobType, h.svc.NewBatch(due, "sales_event"))
	}
	if err != nil {
		h.log.Warn("enqueue retrain",
			logger.Strings("product_ids", due),
			logger.Error(err))
	}
}

func decodeEvents(b []byte) ([]models.SalesEvent, error) {
	if trimmed := bytes.TrimLeft(b, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '[' {
		var evs []models.SalesEvent
		if err := json.Unmarshal(trimmed, &evs); err != nil {
			return nil, err
		}
		return evs, nil
	}
	var ev models.SalesEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return nil, err
	}
	return []models.SalesEvent{ev}, nil
}
