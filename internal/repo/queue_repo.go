package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Kommutator/internal/domain"
)

// QueueRepo — репозиторий конфигурации очередей ожидания.
//
// Записи ожидающих звонков живут в памяти engine
// (dispatch.QueueRegistry); в БД — только конфигурация.
type QueueRepo struct {
	pool *pgxpool.Pool
}

// NewQueueRepo создаёт новый QueueRepo.
func NewQueueRepo(pool *pgxpool.Pool) *QueueRepo {
	return &QueueRepo{pool: pool}
}

// Create создаёт очередь.
func (r *QueueRepo) Create(ctx context.Context, cfg *domain.QueueConfig) error {
	query := `
		INSERT INTO queues (name, max_size, max_wait_sec, strategy,
			hold_audio_ref, announce_audio_ref, announce_interval_sec)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		cfg.Name,
		cfg.MaxSize,
		cfg.MaxWaitSec,
		cfg.Strategy,
		cfg.HoldAudioRef,
		cfg.AnnounceAudioRef,
		cfg.AnnounceIntervalSec,
	)
	if err != nil {
		return fmt.Errorf("insert queue: %w", err)
	}
	return nil
}

// GetByName возвращает очередь по имени.
func (r *QueueRepo) GetByName(ctx context.Context, name string) (*domain.QueueConfig, error) {
	query := `
		SELECT name, max_size, max_wait_sec, strategy,
			hold_audio_ref, announce_audio_ref, announce_interval_sec
		FROM queues
		WHERE name = $1
	`
	var cfg domain.QueueConfig
	err := r.pool.QueryRow(ctx, query, name).Scan(
		&cfg.Name,
		&cfg.MaxSize,
		&cfg.MaxWaitSec,
		&cfg.Strategy,
		&cfg.HoldAudioRef,
		&cfg.AnnounceAudioRef,
		&cfg.AnnounceIntervalSec,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queue by name: %w", err)
	}
	return &cfg, nil
}

// List возвращает все очереди.
// Загружается engine при старте в dispatch.QueueRegistry.
func (r *QueueRepo) List(ctx context.Context) ([]domain.QueueConfig, error) {
	query := `
		SELECT name, max_size, max_wait_sec, strategy,
			hold_audio_ref, announce_audio_ref, announce_interval_sec
		FROM queues
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	defer rows.Close()

	var configs []domain.QueueConfig
	for rows.Next() {
		var cfg domain.QueueConfig
		if err := rows.Scan(
			&cfg.Name,
			&cfg.MaxSize,
			&cfg.MaxWaitSec,
			&cfg.Strategy,
			&cfg.HoldAudioRef,
			&cfg.AnnounceAudioRef,
			&cfg.AnnounceIntervalSec,
		); err != nil {
			return nil, fmt.Errorf("scan queue: %w", err)
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// Delete удаляет очередь.
func (r *QueueRepo) Delete(ctx context.Context, name string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM queues WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete queue: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
