package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Kommutator/internal/domain"
)

// FlowRepo — репозиторий для работы с flows и flow_versions.
type FlowRepo struct {
	pool *pgxpool.Pool
}

// NewFlowRepo создаёт новый FlowRepo.
func NewFlowRepo(pool *pgxpool.Pool) *FlowRepo {
	return &FlowRepo{pool: pool}
}

// --- Flow CRUD ---

// Create создаёт новый flow.
func (r *FlowRepo) Create(ctx context.Context, flow *domain.Flow) error {
	query := `
		INSERT INTO flows (id, name, number, is_active, published_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		flow.ID,
		flow.Name,
		flow.Number,
		flow.IsActive,
		flow.PublishedVersion,
		flow.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert flow: %w", err)
	}
	return nil
}

// GetByID возвращает flow по ID.
func (r *FlowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Flow, error) {
	query := `
		SELECT id, name, number, is_active, published_version, created_at
		FROM flows
		WHERE id = $1
	`
	return r.scanFlow(r.pool.QueryRow(ctx, query, id))
}

// GetByNumber возвращает активный flow, привязанный к входящему номеру.
// Используется при маршрутизации нового звонка.
func (r *FlowRepo) GetByNumber(ctx context.Context, number string) (*domain.Flow, error) {
	query := `
		SELECT id, name, number, is_active, published_version, created_at
		FROM flows
		WHERE number = $1 AND is_active = TRUE
	`
	return r.scanFlow(r.pool.QueryRow(ctx, query, number))
}

// scanFlow читает одну строку flows.
func (r *FlowRepo) scanFlow(row pgx.Row) (*domain.Flow, error) {
	var flow domain.Flow
	err := row.Scan(
		&flow.ID,
		&flow.Name,
		&flow.Number,
		&flow.IsActive,
		&flow.PublishedVersion,
		&flow.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan flow: %w", err)
	}
	return &flow, nil
}

// List возвращает список всех flows.
func (r *FlowRepo) List(ctx context.Context) ([]domain.Flow, error) {
	query := `
		SELECT id, name, number, is_active, published_version, created_at
		FROM flows
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	var flows []domain.Flow
	for rows.Next() {
		var flow domain.Flow
		if err := rows.Scan(
			&flow.ID,
			&flow.Name,
			&flow.Number,
			&flow.IsActive,
			&flow.PublishedVersion,
			&flow.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		flows = append(flows, flow)
	}
	return flows, rows.Err()
}

// Update обновляет flow.
func (r *FlowRepo) Update(ctx context.Context, flow *domain.Flow) error {
	query := `
		UPDATE flows
		SET name = $2, number = $3, is_active = $4
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, flow.ID, flow.Name, flow.Number, flow.IsActive)
	if err != nil {
		return fmt.Errorf("update flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет flow (каскадно удалит versions).
func (r *FlowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM flows WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- FlowVersion ---

// CreateVersion создаёт новую версию графа flow.
// Версия автоматически инкрементируется.
func (r *FlowRepo) CreateVersion(ctx context.Context, flowID uuid.UUID, graph *domain.FlowGraph) (*domain.FlowVersion, error) {
	graphJSON, err := json.Marshal(graph)
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}

	// Получаем следующий номер версии
	var nextVersion int
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1
		FROM flow_versions
		WHERE flow_id = $1
	`, flowID).Scan(&nextVersion)
	if err != nil {
		return nil, fmt.Errorf("get next version: %w", err)
	}

	var version domain.FlowVersion
	err = r.pool.QueryRow(ctx, `
		INSERT INTO flow_versions (flow_id, version, graph, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING flow_id, version, created_at
	`, flowID, nextVersion, graphJSON).Scan(
		&version.FlowID,
		&version.Version,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert flow version: %w", err)
	}

	version.Graph = graph
	version.Graph.FlowID = flowID
	version.Graph.Version = version.Version
	return &version, nil
}

// GetVersion возвращает конкретную версию flow.
func (r *FlowRepo) GetVersion(ctx context.Context, flowID uuid.UUID, version int) (*domain.FlowVersion, error) {
	query := `
		SELECT flow_id, version, graph, created_at
		FROM flow_versions
		WHERE flow_id = $1 AND version = $2
	`
	return r.scanVersion(r.pool.QueryRow(ctx, query, flowID, version))
}

// GetPublishedVersion возвращает опубликованную версию flow.
// Это версия, с которой начинают новые звонки.
func (r *FlowRepo) GetPublishedVersion(ctx context.Context, flowID uuid.UUID) (*domain.FlowVersion, error) {
	query := `
		SELECT fv.flow_id, fv.version, fv.graph, fv.created_at
		FROM flow_versions fv
		JOIN flows f ON f.id = fv.flow_id AND f.published_version = fv.version
		WHERE fv.flow_id = $1
	`
	return r.scanVersion(r.pool.QueryRow(ctx, query, flowID))
}

// scanVersion читает одну строку flow_versions с десериализацией графа.
func (r *FlowRepo) scanVersion(row pgx.Row) (*domain.FlowVersion, error) {
	var fv domain.FlowVersion
	var graphJSON []byte
	err := row.Scan(
		&fv.FlowID,
		&fv.Version,
		&graphJSON,
		&fv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan flow version: %w", err)
	}

	if err := json.Unmarshal(graphJSON, &fv.Graph); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	for id, node := range fv.Graph.Nodes {
		if node != nil && node.ID == "" {
			node.ID = id
		}
	}
	fv.Graph.FlowID = fv.FlowID
	fv.Graph.Version = fv.Version

	return &fv, nil
}

// ListVersions возвращает все версии flow (без графов).
func (r *FlowRepo) ListVersions(ctx context.Context, flowID uuid.UUID) ([]domain.FlowVersion, error) {
	query := `
		SELECT flow_id, version, created_at
		FROM flow_versions
		WHERE flow_id = $1
		ORDER BY version DESC
	`
	rows, err := r.pool.Query(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("list flow versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.FlowVersion
	for rows.Next() {
		var fv domain.FlowVersion
		if err := rows.Scan(
			&fv.FlowID,
			&fv.Version,
			&fv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan flow version: %w", err)
		}
		versions = append(versions, fv)
	}
	return versions, rows.Err()
}

// Publish помечает версию опубликованной.
// Новые звонки на номер flow пойдут по этой версии; работающие
// сессии продолжают на своей.
func (r *FlowRepo) Publish(ctx context.Context, flowID uuid.UUID, version int) error {
	// Версия должна существовать
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM flow_versions WHERE flow_id = $1 AND version = $2)
	`, flowID, version).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE flows SET published_version = $2, is_active = TRUE WHERE id = $1
	`, flowID, version)
	if err != nil {
		return fmt.Errorf("publish flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
