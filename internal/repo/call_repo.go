package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Kommutator/internal/domain"
)

// CallRepo — репозиторий записей о завершённых звонках (CDR).
//
// Запись вставляется engine однократно при терминальном переходе
// сессии; живые сессии в БД не хранятся.
type CallRepo struct {
	pool *pgxpool.Pool
}

// NewCallRepo создаёт новый CallRepo.
func NewCallRepo(pool *pgxpool.Pool) *CallRepo {
	return &CallRepo{pool: pool}
}

// CallRecord — итоговая запись о звонке.
type CallRecord struct {
	CallID     string
	Caller     string
	Called     string
	FlowID     string
	Status     domain.CallStatus
	QueueName  string
	AgentID    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Insert сохраняет запись о завершённом звонке.
func (r *CallRepo) Insert(ctx context.Context, rec *CallRecord) error {
	query := `
		INSERT INTO call_log (call_id, caller, called, flow_id, status,
			queue_name, agent_id, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (call_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		rec.CallID,
		rec.Caller,
		rec.Called,
		rec.FlowID,
		rec.Status,
		rec.QueueName,
		rec.AgentID,
		rec.StartedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert call record: %w", err)
	}
	return nil
}

// ListRecent возвращает последние завершённые звонки.
func (r *CallRepo) ListRecent(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT call_id, caller, called, flow_id, status,
			queue_name, agent_id, started_at, finished_at
		FROM call_log
		ORDER BY finished_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list call records: %w", err)
	}
	defer rows.Close()

	var records []CallRecord
	for rows.Next() {
		var rec CallRecord
		if err := rows.Scan(
			&rec.CallID,
			&rec.Caller,
			&rec.Called,
			&rec.FlowID,
			&rec.Status,
			&rec.QueueName,
			&rec.AgentID,
			&rec.StartedAt,
			&rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan call record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
