package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"MarketPulse/internal/domain/models"
	pkgch "MarketPulse/pkg/clickhouse"
	"MarketPulse/pkg/logger"
)

// CHSalesStore keeps daily sales in ClickHouse. Rewrites of a day are
// appended; reads take the latest row per day with argMax.
type CHSalesStore struct {
	db    *sql.DB
	table string
	cb    *gobreaker.CircuitBreaker[[]models.SalesRecord]
	l     *logger.Logger
}

// BreakerSettings tunes the circuit breaker around history reads.
type BreakerSettings struct {
	Failures uint32
	Timeout  time.Duration
}

func NewCHSalesStore(client *pkgch.Client, bs BreakerSettings, l *logger.Logger) *CHSalesStore {
	return newCHSalesStore(client.DB(), client.Database()+".sales_daily", bs, l)
}

func newCHSalesStore(db *sql.DB, table string, bs BreakerSettings, l *logger.Logger) *CHSalesStore {
	if l == nil {
		l = logger.Nop()
	}
	if bs.Failures == 0 {
		bs.Failures = 5
	}
	s := &CHSalesStore{db: db, table: table, l: l}
	s.cb = gobreaker.NewCircuitBreaker[[]models.SalesRecord](gobreaker.Settings{
		Name:    "clickhouse-sales-history",
		Timeout: bs.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.Failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
		// caller cancellations do not count against the store
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return s
}

func (s *CHSalesStore) insertQuery() string {
	return fmt.Sprintf("INSERT INTO %s (product_id, day, quantity)", s.table)
}

func (s *CHSalesStore) historyQuery() string {
	return fmt.Sprintf(`SELECT day, argMax(quantity, ingested_at) AS quantity
FROM %s
WHERE product_id = ? AND day >= ?
GROUP BY day
ORDER BY day`, s.table)
}

// Append writes records in one batch.
func (s *CHSalesStore) Append(ctx context.Context, productID string, records []models.SalesRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.l.Error("clickhouse begin failed", logger.Error(err))
		return fmt.Errorf("append sales: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, s.insertQuery())
	if err != nil {
		_ = tx.Rollback()
		s.l.Error("clickhouse prepare failed", logger.Error(err))
		return fmt.Errorf("append sales: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, productID, r.Date.UTC(), r.Quantity); err != nil {
			_ = tx.Rollback()
			s.l.Error("clickhouse append failed",
				logger.String("product_id", productID),
				logger.Error(err))
			return fmt.Errorf("append sales: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append sales: %w", err)
	}
	return nil
}

// History returns one record per day since the given day, oldest first.
func (s *CHSalesStore) History(ctx context.Context, productID string, since time.Time) ([]models.SalesRecord, error) {
	out, err := s.cb.Execute(func() ([]models.SalesRecord, error) {
		return s.queryHistory(ctx, productID, since)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("sales history unavailable: %w", err)
		}
		return nil, fmt.Errorf("get sales history: %w", err)
	}
	return out, nil
}

func (s *CHSalesStore) queryHistory(ctx context.Context, productID string, since time.Time) ([]models.SalesRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.historyQuery(), productID, since.UTC())
	if err != nil {
		s.l.Error("clickhouse query failed", logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []models.SalesRecord
	for rows.Next() {
		var r models.SalesRecord
		if err := rows.Scan(&r.Date, &r.Quantity); err != nil {
			s.l.Error("clickhouse scan failed", logger.Error(err))
			return nil, err
		}
		r.Date = r.Date.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse rows error", logger.Error(err))
		return nil, err
	}
	return out, nil
}

func (s *CHSalesStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BreakerState reports the circuit breaker state for the health endpoint.
func (s *CHSalesStore) BreakerState() string {
	return s.cb.State().String()
}
