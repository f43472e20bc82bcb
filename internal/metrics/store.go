package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"weekplan/internal/database"
	"weekplan/internal/shared"
)

// ExecutionMetric records metadata for a single assistant execution.
type ExecutionMetric struct {
	AgentName        string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Outcome          string
	Timestamp        time.Time
}

// Store handles persistence of metrics in the execution_metrics table.
type Store struct {
	db  *database.DB
	now func() time.Time
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m ExecutionMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	_, err := s.db.SQL.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO execution_metrics (agent_name, model, prompt_tokens, completion_tokens, latency_ms, outcome, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		m.AgentName, m.Model, m.PromptTokens, m.CompletionTokens, m.LatencyMS, m.Outcome, ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record execution metric: %w", err)
	}
	return nil
}

// RecordMeta records metrics directly from shared.AgentMeta.
func (s *Store) RecordMeta(ctx context.Context, meta shared.AgentMeta) error {
	m := MapUsage(meta.AgentName, meta.Usage, meta.Latency)
	m.Outcome = meta.Outcome
	m.Timestamp = s.now()
	return s.Record(ctx, m)
}

// DailyUsage represents token totals for a single day.
type DailyUsage struct {
	Date            string `json:"date"`
	TotalPrompt     int    `json:"total_prompt"`
	TotalCompletion int    `json:"total_completion"`
	TotalExecution  int    `json:"total_execution"`
	AvgLatencyMS    int64  `json:"avg_latency_ms"`
}

// GetDailyUsage retrieves usage for the last N days, newest day first.
// Rows are grouped in Go so both dialects share one query.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := s.now().AddDate(0, 0, -days).UTC()
	rows, err := s.db.SQL.QueryContext(ctx, s.db.Rebind(`
		SELECT prompt_tokens, completion_tokens, latency_ms, timestamp
		FROM execution_metrics
		WHERE timestamp >= ?`), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	byDay := make(map[string]*DailyUsage)
	latency := make(map[string]int64)
	for rows.Next() {
		var (
			prompt, completion int
			latencyMS          int64
			ts                 time.Time
		)
		if err := rows.Scan(&prompt, &completion, &latencyMS, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan execution metric: %w", err)
		}
		day := ts.UTC().Format("2006-01-02")
		u, ok := byDay[day]
		if !ok {
			u = &DailyUsage{Date: day}
			byDay[day] = u
		}
		u.TotalPrompt += prompt
		u.TotalCompletion += completion
		u.TotalExecution++
		latency[day] += latencyMS
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read execution metrics: %w", err)
	}

	results := make([]DailyUsage, 0, len(byDay))
	for day, u := range byDay {
		u.AvgLatencyMS = latency[day] / int64(u.TotalExecution)
		results = append(results, *u)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Date > results[j].Date })
	return results, nil
}

// Cleanup removes records older than the specified number of days and
// returns how many were deleted.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := s.now().AddDate(0, 0, -olderThanDays).UTC()
	res, err := s.db.SQL.ExecContext(ctx, s.db.Rebind("DELETE FROM execution_metrics WHERE timestamp < ?"), threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up execution metrics: %w", err)
	}
	return res.RowsAffected()
}

// MapUsage helper to convert shared.TokenUsage to ExecutionMetric.
func MapUsage(agentName string, usage shared.TokenUsage, latency time.Duration) ExecutionMetric {
	return ExecutionMetric{
		AgentName:        agentName,
		Model:            usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		LatencyMS:        latency.Milliseconds(),
		Timestamp:        time.Now().UTC(),
	}
}
