package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gatescan/internal/scan"
)

// PgStore persists threat records in PostgreSQL. Ids come from a sequence,
// so they are monotonic and never reused; Append is durable once the insert
// commits. Query runs the count and the page inside one repeatable-read
// transaction so the total always matches the snapshot the page came from.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Append(ctx context.Context, record ThreatRecord) (int64, error) {
	timestamp := strings.TrimSpace(record.Timestamp)
	if timestamp == "" {
		timestamp = nowRFC3339()
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO threats (source,source_type,probability,bytes_scanned,risk_level,timestamp,blocked,details)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING id`,
		record.Source, record.SourceType, record.Probability, record.BytesScanned,
		record.RiskLevel.String(), timestamp, record.Blocked, nullStr(record.Details)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append threat record: %w", err)
	}
	return id, nil
}

func (s *PgStore) Query(ctx context.Context, query ThreatQuery) ([]ThreatRecord, int64, error) {
	where, args := buildThreatFilter(query)
	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("begin threat query: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM threats`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count threat records: %w", err)
	}

	pageArgs := append(args, limit, offset)
	rows, err := tx.Query(ctx,
		`SELECT id,source,source_type,probability,bytes_scanned,risk_level,timestamp,blocked,details
		 FROM threats`+where+
			fmt.Sprintf(` ORDER BY timestamp DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2),
		pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query threat records: %w", err)
	}
	defer rows.Close()

	out := []ThreatRecord{}
	for rows.Next() {
		record, scanErr := scanThreatRecord(rows)
		if scanErr != nil {
			return nil, 0, scanErr
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate threat records: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("commit threat query: %w", err)
	}
	return out, total, nil
}

func (s *PgStore) Aggregate(ctx context.Context) (ThreatAggregate, error) {
	aggregate := ThreatAggregate{
		GeneratedAt:    nowRFC3339(),
		CountsPerLevel: map[string]int64{},
	}
	var benign, low, medium, high, critical int64
	err := s.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE risk_level='benign'),
			COUNT(*) FILTER (WHERE risk_level='low'),
			COUNT(*) FILTER (WHERE risk_level='medium'),
			COUNT(*) FILTER (WHERE risk_level='high'),
			COUNT(*) FILTER (WHERE risk_level='critical'),
			COALESCE(SUM(bytes_scanned),0)
		 FROM threats`).Scan(
		&aggregate.Total, &benign, &low, &medium, &high, &critical,
		&aggregate.TotalBytesScanned)
	if err != nil {
		return ThreatAggregate{}, fmt.Errorf("aggregate threat records: %w", err)
	}
	for level, count := range map[string]int64{
		"benign": benign, "low": low, "medium": medium, "high": high, "critical": critical,
	} {
		if count > 0 {
			aggregate.CountsPerLevel[level] = count
		}
	}
	return aggregate, nil
}

func buildThreatFilter(query ThreatQuery) (string, []any) {
	clauses := []string{}
	args := []any{}
	if query.RiskLevel != nil {
		args = append(args, query.RiskLevel.String())
		clauses = append(clauses, fmt.Sprintf("risk_level=$%d", len(args)))
	}
	if query.SourceType != "" {
		args = append(args, query.SourceType)
		clauses = append(clauses, fmt.Sprintf("source_type=$%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type scannable interface {
	Scan(dest ...any) error
}

func scanThreatRecord(row scannable) (ThreatRecord, error) {
	var record ThreatRecord
	var level string
	var ts time.Time
	var details *string
	err := row.Scan(&record.ID, &record.Source, &record.SourceType, &record.Probability,
		&record.BytesScanned, &level, &ts, &record.Blocked, &details)
	if err != nil {
		return ThreatRecord{}, fmt.Errorf("scan threat record: %w", err)
	}
	parsed, err := scan.ParseRiskLevel(level)
	if err != nil {
		return ThreatRecord{}, err
	}
	record.RiskLevel = parsed
	record.Timestamp = ts.UTC().Format(time.RFC3339)
	record.Details = deref(details)
	return record, nil
}

func nullStr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

var _ ThreatStore = (*PgStore)(nil)
