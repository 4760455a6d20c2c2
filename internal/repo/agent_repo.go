package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Kommutator/internal/domain"
)

// AgentRepo — репозиторий конфигурации операторов.
//
// Хранит только конфигурационную часть (лимиты, навыки, вес);
// живое состояние ведёт dispatch.AgentRegistry в памяти engine.
type AgentRepo struct {
	pool *pgxpool.Pool
}

// NewAgentRepo создаёт новый AgentRepo.
func NewAgentRepo(pool *pgxpool.Pool) *AgentRepo {
	return &AgentRepo{pool: pool}
}

// Create регистрирует оператора.
func (r *AgentRepo) Create(ctx context.Context, agent *domain.Agent) error {
	query := `
		INSERT INTO agents (id, name, max_concurrent, skills, weight)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		agent.ID,
		agent.Name,
		agent.MaxConcurrent,
		agent.Skills,
		agent.Weight,
	)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// GetByID возвращает оператора по ID.
func (r *AgentRepo) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	query := `
		SELECT id, name, max_concurrent, skills, weight
		FROM agents
		WHERE id = $1
	`
	var agent domain.Agent
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&agent.ID,
		&agent.Name,
		&agent.MaxConcurrent,
		&agent.Skills,
		&agent.Weight,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get agent by id: %w", err)
	}
	agent.Status = domain.AgentOffline
	return &agent, nil
}

// List возвращает всех операторов.
// Загружается engine при старте в dispatch.AgentRegistry.
func (r *AgentRepo) List(ctx context.Context) ([]domain.Agent, error) {
	query := `
		SELECT id, name, max_concurrent, skills, weight
		FROM agents
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		var agent domain.Agent
		if err := rows.Scan(
			&agent.ID,
			&agent.Name,
			&agent.MaxConcurrent,
			&agent.Skills,
			&agent.Weight,
		); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agent.Status = domain.AgentOffline
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// Update обновляет конфигурацию оператора.
func (r *AgentRepo) Update(ctx context.Context, agent *domain.Agent) error {
	query := `
		UPDATE agents
		SET name = $2, max_concurrent = $3, skills = $4, weight = $5
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		agent.ID,
		agent.Name,
		agent.MaxConcurrent,
		agent.Skills,
		agent.Weight,
	)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет оператора.
func (r *AgentRepo) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
