package maintenance

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// ConnectionStats summarises pg_stat_activity for the current database
type ConnectionStats struct {
	Total             int `json:"total"`
	Active            int `json:"active"`
	Idle              int `json:"idle"`
	IdleInTransaction int `json:"idle_in_transaction"`
	WaitingOnLock     int `json:"waiting_on_lock"`
}

// TableStats is one row of pg_stat_user_tables
type TableStats struct {
	Schema          string     `json:"schema"`
	Table           string     `json:"table"`
	SeqScan         int64      `json:"seq_scan"`
	SeqTupRead      int64      `json:"seq_tup_read"`
	IdxScan         int64      `json:"idx_scan"`
	IdxTupFetch     int64      `json:"idx_tup_fetch"`
	LiveTuples      int64      `json:"live_tuples"`
	DeadTuples      int64      `json:"dead_tuples"`
	LastVacuum      *time.Time `json:"last_vacuum,omitempty"`
	LastAutovacuum  *time.Time `json:"last_autovacuum,omitempty"`
	LastAnalyze     *time.Time `json:"last_analyze,omitempty"`
	LastAutoanalyze *time.Time `json:"last_autoanalyze,omitempty"`
}

// DeadTupleRatio is dead / (live + dead), zero for an empty table
func (t TableStats) DeadTupleRatio() float64 {
	total := t.LiveTuples + t.DeadTuples
	if total == 0 {
		return 0
	}
	return float64(t.DeadTuples) / float64(total)
}

// IndexStats is one row of pg_stat_user_indexes
type IndexStats struct {
	Schema   string `json:"schema"`
	Table    string `json:"table"`
	Index    string `json:"index"`
	Scans    int64  `json:"scans"`
	TupRead  int64  `json:"tup_read"`
	TupFetch int64  `json:"tup_fetch"`
}

// DatabaseStats is the full monitor report
type DatabaseStats struct {
	Connections   ConnectionStats `json:"connections"`
	Tables        []TableStats    `json:"tables"`
	Indexes       []IndexStats    `json:"indexes"`
	CacheHitRatio float64         `json:"cache_hit_ratio"`
	CollectedAt   time.Time       `json:"collected_at"`
}

const (
	connectionStatsQuery = `
SELECT count(*),
       count(*) FILTER (WHERE state = 'active'),
       count(*) FILTER (WHERE state = 'idle'),
       count(*) FILTER (WHERE state = 'idle in transaction'),
       count(*) FILTER (WHERE wait_event_type = 'Lock')
FROM pg_stat_activity
WHERE datname = current_database()`

	tableStatsQuery = `
SELECT schemaname, relname,
       COALESCE(seq_scan, 0), COALESCE(seq_tup_read, 0),
       COALESCE(idx_scan, 0), COALESCE(idx_tup_fetch, 0),
       n_live_tup, n_dead_tup,
       last_vacuum, last_autovacuum, last_analyze, last_autoanalyze
FROM pg_stat_user_tables
ORDER BY n_live_tup DESC, relname`

	indexStatsQuery = `
SELECT schemaname, relname, indexrelname, idx_scan, idx_tup_read, idx_tup_fetch
FROM pg_stat_user_indexes
ORDER BY idx_scan DESC, indexrelname`

	cacheHitQuery = `
SELECT COALESCE(blks_hit::float8 / NULLIF(blks_hit + blks_read, 0), 0)
FROM pg_stat_database
WHERE datname = current_database()`
)

// Monitor reads Postgres statistics views. It never writes.
type Monitor struct {
	db *sql.DB
}

// NewMonitor wraps a database/sql handle connected directly to Postgres
func NewMonitor(db *sql.DB) *Monitor {
	return &Monitor{db: db}
}

// Connections summarises sessions on the current database
func (m *Monitor) Connections(ctx context.Context) (ConnectionStats, error) {
	var s ConnectionStats
	err := m.db.QueryRowContext(ctx, connectionStatsQuery).
		Scan(&s.Total, &s.Active, &s.Idle, &s.IdleInTransaction, &s.WaitingOnLock)
	if err != nil {
		return s, errors.Wrap(err, "query pg_stat_activity")
	}
	return s, nil
}

// TableStats returns scan, tuple and vacuum statistics per user table
func (m *Monitor) TableStats(ctx context.Context) ([]TableStats, error) {
	rows, err := m.db.QueryContext(ctx, tableStatsQuery)
	if err != nil {
		return nil, errors.Wrap(err, "query pg_stat_user_tables")
	}
	defer rows.Close()

	stats := []TableStats{}
	for rows.Next() {
		var t TableStats
		var vacuum, autovacuum, analyze, autoanalyze sql.NullTime
		if err := rows.Scan(&t.Schema, &t.Table, &t.SeqScan, &t.SeqTupRead, &t.IdxScan, &t.IdxTupFetch,
			&t.LiveTuples, &t.DeadTuples, &vacuum, &autovacuum, &analyze, &autoanalyze); err != nil {
			return nil, errors.Wrap(err, "scan pg_stat_user_tables")
		}
		t.LastVacuum = nullTime(vacuum)
		t.LastAutovacuum = nullTime(autovacuum)
		t.LastAnalyze = nullTime(analyze)
		t.LastAutoanalyze = nullTime(autoanalyze)
		stats = append(stats, t)
	}
	return stats, errors.Wrap(rows.Err(), "iterate pg_stat_user_tables")
}

// IndexUsage returns scan counts per user index, busiest first
func (m *Monitor) IndexUsage(ctx context.Context) ([]IndexStats, error) {
	rows, err := m.db.QueryContext(ctx, indexStatsQuery)
	if err != nil {
		return nil, errors.Wrap(err, "query pg_stat_user_indexes")
	}
	defer rows.Close()

	stats := []IndexStats{}
	for rows.Next() {
		var s IndexStats
		if err := rows.Scan(&s.Schema, &s.Table, &s.Index, &s.Scans, &s.TupRead, &s.TupFetch); err != nil {
			return nil, errors.Wrap(err, "scan pg_stat_user_indexes")
		}
		stats = append(stats, s)
	}
	return stats, errors.Wrap(rows.Err(), "iterate pg_stat_user_indexes")
}

// CacheHitRatio is blks_hit / (blks_hit + blks_read) for the current database
func (m *Monitor) CacheHitRatio(ctx context.Context) (float64, error) {
	var ratio float64
	if err := m.db.QueryRowContext(ctx, cacheHitQuery).Scan(&ratio); err != nil {
		return 0, errors.Wrap(err, "query pg_stat_database")
	}
	return ratio, nil
}

// DatabaseStats collects every report
func (m *Monitor) DatabaseStats(ctx context.Context) (*DatabaseStats, error) {
	conns, err := m.Connections(ctx)
	if err != nil {
		return nil, err
	}
	tables, err := m.TableStats(ctx)
	if err != nil {
		return nil, err
	}
	indexes, err := m.IndexUsage(ctx)
	if err != nil {
		return nil, err
	}
	ratio, err := m.CacheHitRatio(ctx)
	if err != nil {
		return nil, err
	}
	return &DatabaseStats{
		Connections:   conns,
		Tables:        tables,
		Indexes:       indexes,
		CacheHitRatio: ratio,
		CollectedAt:   time.Now().UTC(),
	}, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
