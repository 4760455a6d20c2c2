package dispatch

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shaiso/Kommutator/internal/domain"
)

type recorded struct {
	queue   string
	callID  string
	agentID string
}

// testScheduler собирает планировщик с записью callbacks.
func testScheduler(queues *QueueRegistry, agents *AgentRegistry) (*Scheduler, *[]recorded, *[]recorded) {
	var assigned, expired []recorded
	s := NewScheduler(SchedulerConfig{
		Queues: queues,
		Agents: agents,
		Assign: func(queue string, entry domain.QueueEntry, agentID string) {
			assigned = append(assigned, recorded{queue, entry.CallID, agentID})
		},
		Expire: func(queue string, entry domain.QueueEntry) {
			expired = append(expired, recorded{queue: queue, callID: entry.CallID})
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return s, &assigned, &expired
}

func TestPass_AssignsHeadOfQueue(t *testing.T) {
	queues := NewQueueRegistry([]domain.QueueConfig{
		{Name: "support", Strategy: domain.StrategyFIFO},
	})
	agents := onlineRegistry(domain.Agent{ID: "a1", MaxConcurrent: 1})

	queues.Enqueue("support", entry("call-1", 0))
	queues.Enqueue("support", entry("call-2", 0))

	s, assigned, _ := testScheduler(queues, agents)
	s.Pass(context.Background(), time.Now())

	// Единственный слот — назначается только голова очереди
	if len(*assigned) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(*assigned))
	}
	if (*assigned)[0].callID != "call-1" || (*assigned)[0].agentID != "a1" {
		t.Errorf("unexpected assignment: %+v", (*assigned)[0])
	}
	if depth, _ := queues.Depth("support"); depth != 1 {
		t.Errorf("expected call-2 still queued, depth %d", depth)
	}

	// Освободившийся слот забирает следующий звонок на новом проходе
	agents.Release("a1")
	s.Pass(context.Background(), time.Now())
	if len(*assigned) != 2 || (*assigned)[1].callID != "call-2" {
		t.Fatalf("expected call-2 assigned after release, got %v", *assigned)
	}
}

func TestPass_ExpiresBeforeAssigning(t *testing.T) {
	now := time.Now()
	queues := NewQueueRegistry([]domain.QueueConfig{
		{Name: "support", MaxWaitSec: 10, Strategy: domain.StrategyFIFO},
	})
	agents := onlineRegistry(domain.Agent{ID: "a1", MaxConcurrent: 1})

	queues.Enqueue("support", domain.QueueEntry{CallID: "stale", EnqueuedAt: now.Add(-time.Minute)})
	queues.Enqueue("support", domain.QueueEntry{CallID: "fresh", EnqueuedAt: now})

	s, assigned, expired := testScheduler(queues, agents)
	s.Pass(context.Background(), now)

	if len(*expired) != 1 || (*expired)[0].callID != "stale" {
		t.Fatalf("expected stale call to expire, got %v", *expired)
	}
	if len(*assigned) != 1 || (*assigned)[0].callID != "fresh" {
		t.Fatalf("expected fresh call assigned, got %v", *assigned)
	}
}

func TestPass_NoOvertakingOnSkills(t *testing.T) {
	queues := NewQueueRegistry([]domain.QueueConfig{
		{Name: "support", Strategy: domain.StrategyFIFO},
	})
	agents := onlineRegistry(domain.Agent{ID: "a1", Skills: []string{"ru"}})

	// Голова требует навык, которого нет; второй звонок подошёл бы,
	// но обгон нарушил бы порядок очереди
	queues.Enqueue("support", domain.QueueEntry{CallID: "head", Skills: []string{"de"}, EnqueuedAt: time.Now()})
	queues.Enqueue("support", domain.QueueEntry{CallID: "second", EnqueuedAt: time.Now()})

	s, assigned, _ := testScheduler(queues, agents)
	s.Pass(context.Background(), time.Now())

	if len(*assigned) != 0 {
		t.Errorf("expected no assignments, got %v", *assigned)
	}
	if depth, _ := queues.Depth("support"); depth != 2 {
		t.Errorf("queue should be intact, depth %d", depth)
	}
}

func TestPass_DeterministicQueueOrder(t *testing.T) {
	queues := NewQueueRegistry([]domain.QueueConfig{
		{Name: "beta", Strategy: domain.StrategyFIFO},
		{Name: "alpha", Strategy: domain.StrategyFIFO},
	})
	agents := onlineRegistry(domain.Agent{ID: "a1", MaxConcurrent: 2})

	queues.Enqueue("beta", entry("call-beta", 0))
	queues.Enqueue("alpha", entry("call-alpha", 0))

	s, assigned, _ := testScheduler(queues, agents)
	s.Pass(context.Background(), time.Now())

	// Очереди обходятся в лексикографическом порядке
	if len(*assigned) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(*assigned))
	}
	if (*assigned)[0].queue != "alpha" || (*assigned)[1].queue != "beta" {
		t.Errorf("expected alpha before beta, got %v", *assigned)
	}
}

func TestKick_Coalesces(t *testing.T) {
	queues := NewQueueRegistry(nil)
	agents := NewAgentRegistry()
	s, _, _ := testScheduler(queues, agents)

	// Kick до запуска цикла не должен блокировать
	for i := 0; i < 10; i++ {
		s.Kick()
	}

	if len(s.kickCh) != 1 {
		t.Errorf("kicks should coalesce into one, got %d", len(s.kickCh))
	}
}
