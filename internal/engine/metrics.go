package engine

import (
	"context"
	"fmt"
)

// DashboardMetrics is a point-in-time health snapshot of one server.
type DashboardMetrics struct {
	ActiveConnections int     `json:"activeConnections"`
	TotalConnections  int     `json:"totalConnections"`
	MaxConnections    int     `json:"maxConnections"`
	DatabaseSizeBytes int64   `json:"databaseSizeBytes"`
	CacheHitRatio     float64 `json:"cacheHitRatio"`
	UptimeSeconds     int64   `json:"uptimeSeconds"`
}

const metricsQuery = `
	SELECT
		(SELECT count(*) FROM pg_stat_activity WHERE state = 'active'),
		(SELECT count(*) FROM pg_stat_activity),
		current_setting('max_connections')::int,
		pg_database_size(current_database()),
		coalesce((SELECT sum(blks_hit)::float8 / nullif(sum(blks_hit) + sum(blks_read), 0)
		          FROM pg_stat_database), 0),
		extract(epoch FROM now() - pg_postmaster_start_time())::bigint`

// Metrics collects dashboard metrics from the server's statistics views.
func (e *Engine) Metrics(ctx context.Context, serverID string) (*DashboardMetrics, error) {
	conn, _, err := e.acquire(ctx, serverID, "")
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	m := &DashboardMetrics{}
	err = conn.QueryRow(ctx, metricsQuery).Scan(
		&m.ActiveConnections,
		&m.TotalConnections,
		&m.MaxConnections,
		&m.DatabaseSizeBytes,
		&m.CacheHitRatio,
		&m.UptimeSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}
	return m, nil
}
