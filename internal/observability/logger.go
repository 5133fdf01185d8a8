// Package observability provides structured logging of the one-way stats
// record C6 emits per completed request. Delivery is best-effort: a sink
// failure here must never affect the response already returned to the
// caller.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/canonica-labs/semgate/internal/types"
)

// Logger is the observability sink collaborator.
type Logger interface {
	EmitStats(stats types.Stats)
	AuditSummary() *AuditSummary
}

// AuditSummary aggregates accepted/rejected counts and top offenders across
// every stats record a logger has seen, for a lightweight operational view
// without exposing raw row data.
type AuditSummary struct {
	AcceptedCount       int                   `json:"accepted_count"`
	RejectedCount       int                   `json:"rejected_count"`
	TopRejectionReasons []RejectionReasonStat `json:"top_rejection_reasons"`
	TopQueriedDatasets  []DatasetQueryStat    `json:"top_queried_datasets"`
}

type RejectionReasonStat struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

type DatasetQueryStat struct {
	Dataset string `json:"dataset"`
	Count   int    `json:"count"`
}

type jsonLogLine struct {
	Timestamp   string `json:"timestamp"`
	Level       string `json:"level"`
	Tenant      string `json:"tenant"`
	Dataset     string `json:"dataset"`
	Engine      string `json:"engine"`
	Rows        int    `json:"rows"`
	DurationMs  int64  `json:"duration_ms"`
	CacheHit    bool   `json:"cache_hit"`
	RLSApplied  bool   `json:"rls_applied"`
	RLSBypassed bool   `json:"rls_bypassed"`
	Outcome     string `json:"outcome,omitempty"`
	Error       string `json:"error,omitempty"`
}

// JSONLogger writes one JSON line per request to w and keeps every record
// in memory, without a bound, for AuditSummary.
type JSONLogger struct {
	writer  io.Writer
	mu      sync.RWMutex
	entries []types.Stats
}

func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{writer: w}
}

func (l *JSONLogger) EmitStats(stats types.Stats) {
	level := "info"
	if stats.Outcome == "error" {
		level = "error"
	}
	line := jsonLogLine{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Level:       level,
		Tenant:      stats.Tenant,
		Dataset:     stats.Dataset,
		Engine:      stats.Engine,
		Rows:        stats.Rows,
		DurationMs:  stats.DurationMs,
		CacheHit:    stats.CacheHit,
		RLSApplied:  stats.RLSApplied,
		RLSBypassed: stats.RLSBypassed,
		Outcome:     stats.Outcome,
		Error:       stats.Error,
	}
	if data, err := json.Marshal(line); err == nil {
		l.writer.Write(data)
		l.writer.Write([]byte("\n"))
	}

	l.mu.Lock()
	l.entries = append(l.entries, stats)
	l.mu.Unlock()
}

func (l *JSONLogger) AuditSummary() *AuditSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return summarize(l.entries)
}

func summarize(entries []types.Stats) *AuditSummary {
	summary := &AuditSummary{
		TopRejectionReasons: []RejectionReasonStat{},
		TopQueriedDatasets:  []DatasetQueryStat{},
	}
	reasons := make(map[string]int)
	datasets := make(map[string]int)

	for _, e := range entries {
		if e.Outcome == "error" {
			summary.RejectedCount++
			reasons[e.Error]++
		} else {
			summary.AcceptedCount++
		}
		if e.Dataset != "" {
			datasets[e.Dataset]++
		}
	}

	for reason, count := range reasons {
		summary.TopRejectionReasons = append(summary.TopRejectionReasons, RejectionReasonStat{Reason: reason, Count: count})
	}
	sort.Slice(summary.TopRejectionReasons, func(i, j int) bool {
		return summary.TopRejectionReasons[i].Count > summary.TopRejectionReasons[j].Count
	})
	if len(summary.TopRejectionReasons) > 5 {
		summary.TopRejectionReasons = summary.TopRejectionReasons[:5]
	}

	for ds, count := range datasets {
		summary.TopQueriedDatasets = append(summary.TopQueriedDatasets, DatasetQueryStat{Dataset: ds, Count: count})
	}
	sort.Slice(summary.TopQueriedDatasets, func(i, j int) bool {
		return summary.TopQueriedDatasets[i].Count > summary.TopQueriedDatasets[j].Count
	})
	if len(summary.TopQueriedDatasets) > 5 {
		summary.TopQueriedDatasets = summary.TopQueriedDatasets[:5]
	}

	return summary
}

// NoopLogger discards everything. Used in tests and wherever observability
// is not wired.
type NoopLogger struct{}

func NewNoopLogger() *NoopLogger { return &NoopLogger{} }

func (l *NoopLogger) EmitStats(types.Stats) {}

func (l *NoopLogger) AuditSummary() *AuditSummary {
	return &AuditSummary{TopRejectionReasons: []RejectionReasonStat{}, TopQueriedDatasets: []DatasetQueryStat{}}
}

// PersistentLogger persists stats records to Postgres in addition to an
// optional writer, so audit history survives a gateway restart.
type PersistentLogger struct {
	db     *sql.DB
	writer io.Writer
}

func NewPersistentLogger(db *sql.DB, w io.Writer) (*PersistentLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("observability: database connection is required for persistent logging")
	}
	return &PersistentLogger{db: db, writer: w}, nil
}

func (l *PersistentLogger) EmitStats(stats types.Stats) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO query_stats (
			tenant, dataset, engine, rows, duration_ms, cache_hit,
			rls_applied, rls_bypassed, outcome, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		stats.Tenant, stats.Dataset, stats.Engine, stats.Rows, stats.DurationMs,
		stats.CacheHit, stats.RLSApplied, stats.RLSBypassed, stats.Outcome, nullableString(stats.Error),
	)
	if err != nil && l.writer != nil {
		fmt.Fprintf(l.writer, `{"level":"error","msg":"failed to persist stats: %v"}`+"\n", err)
	}
}

func (l *PersistentLogger) AuditSummary() *AuditSummary {
	summary := &AuditSummary{TopRejectionReasons: []RejectionReasonStat{}, TopQueriedDatasets: []DatasetQueryStat{}}
	ctx := context.Background()

	l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_stats WHERE outcome <> 'error'`).Scan(&summary.AcceptedCount)
	l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_stats WHERE outcome = 'error'`).Scan(&summary.RejectedCount)

	if rows, err := l.db.QueryContext(ctx, `
		SELECT error, COUNT(*) as cnt FROM query_stats WHERE outcome = 'error'
		GROUP BY error ORDER BY cnt DESC LIMIT 5
	`); err == nil {
		defer rows.Close()
		for rows.Next() {
			var r RejectionReasonStat
			if rows.Scan(&r.Reason, &r.Count) == nil {
				summary.TopRejectionReasons = append(summary.TopRejectionReasons, r)
			}
		}
	}

	if rows, err := l.db.QueryContext(ctx, `
		SELECT dataset, COUNT(*) as cnt FROM query_stats
		GROUP BY dataset ORDER BY cnt DESC LIMIT 5
	`); err == nil {
		defer rows.Close()
		for rows.Next() {
			var d DatasetQueryStat
			if rows.Scan(&d.Dataset, &d.Count) == nil {
				summary.TopQueriedDatasets = append(summary.TopQueriedDatasets, d)
			}
		}
	}

	return summary
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
