package dispatch

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Kommutator/internal/domain"
)

func onlineRegistry(agents ...domain.Agent) *AgentRegistry {
	r := NewAgentRegistry()
	r.Load(agents)
	for _, a := range agents {
		r.SetStatus(a.ID, domain.AgentOnline)
	}
	return r
}

func TestLoad_Defaults(t *testing.T) {
	r := NewAgentRegistry()
	r.Load([]domain.Agent{
		{ID: "a1", Name: "Аня"},
	})

	a, err := r.Get("a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != domain.AgentOffline {
		t.Errorf("new agent should be OFFLINE, got %s", a.Status)
	}
	if a.MaxConcurrent != 1 {
		t.Errorf("max_concurrent should default to 1, got %d", a.MaxConcurrent)
	}
}

func TestLoad_PreservesLiveState(t *testing.T) {
	r := onlineRegistry(domain.Agent{ID: "a1", MaxConcurrent: 2})

	if _, err := r.Acquire(nil, domain.StrategyFIFO); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Перезагрузка конфигурации не сбрасывает статус и загрузку
	r.Load([]domain.Agent{{ID: "a1", MaxConcurrent: 3, Weight: 10}})

	a, _ := r.Get("a1")
	if a.Status != domain.AgentOnline {
		t.Errorf("reload should preserve status, got %s", a.Status)
	}
	if a.ActiveCalls != 1 {
		t.Errorf("reload should preserve active calls, got %d", a.ActiveCalls)
	}
	if a.MaxConcurrent != 3 || a.Weight != 10 {
		t.Errorf("reload should update limits, got max=%d weight=%d", a.MaxConcurrent, a.Weight)
	}
}

func TestSetStatus_Transitions(t *testing.T) {
	r := NewAgentRegistry()
	r.Load([]domain.Agent{{ID: "a1"}})

	from, to, err := r.SetStatus("a1", domain.AgentOnline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if from != domain.AgentOffline || to != domain.AgentOnline {
		t.Errorf("expected OFFLINE→ONLINE, got %s→%s", from, to)
	}

	// ON_CALL извне не выставляется
	if _, _, err := r.SetStatus("a1", domain.AgentOnCall); !errors.Is(err, ErrBadStatus) {
		t.Errorf("expected ErrBadStatus for ON_CALL, got %v", err)
	}
	if _, _, err := r.SetStatus("a1", "SLEEPING"); !errors.Is(err, ErrBadStatus) {
		t.Errorf("expected ErrBadStatus for unknown status, got %v", err)
	}
	if _, _, err := r.SetStatus("ghost", domain.AgentOnline); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestSetStatus_OnlineAtCapacityStaysOnCall(t *testing.T) {
	r := onlineRegistry(domain.Agent{ID: "a1", MaxConcurrent: 1})

	if _, err := r.Acquire(nil, domain.StrategyFIFO); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Оператор ушёл на паузу и вернулся, не положив трубку
	r.SetStatus("a1", domain.AgentBusy)
	_, to, err := r.SetStatus("a1", domain.AgentOnline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if to != domain.AgentOnCall {
		t.Errorf("agent at capacity should resolve to ON_CALL, got %s", to)
	}
}

func TestAcquire_SkillFiltering(t *testing.T) {
	r := onlineRegistry(
		domain.Agent{ID: "ru", Skills: []string{"ru"}},
		domain.Agent{ID: "ru-de", Skills: []string{"ru", "de"}},
	)

	id, err := r.Acquire([]string{"de"}, domain.StrategyFIFO)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "ru-de" {
		t.Errorf("expected ru-de, got %s", id)
	}

	if _, err := r.Acquire([]string{"fr"}, domain.StrategyFIFO); !errors.Is(err, ErrNoEligibleAgent) {
		t.Errorf("expected ErrNoEligibleAgent, got %v", err)
	}
}

func TestAcquire_WeightThenIdleThenID(t *testing.T) {
	r := onlineRegistry(
		domain.Agent{ID: "heavy", Weight: 10, MaxConcurrent: 5},
		domain.Agent{ID: "light", Weight: 1, MaxConcurrent: 5},
	)

	id, err := r.Acquire(nil, domain.StrategyFIFO)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "heavy" {
		t.Errorf("expected heavy (higher weight), got %s", id)
	}

	// При равном весе — дольше простаивающий
	r = onlineRegistry(
		domain.Agent{ID: "young", MaxConcurrent: 5},
		domain.Agent{ID: "idle", MaxConcurrent: 5},
	)
	r.agents["idle"].OnlineSince = time.Now().Add(-time.Hour)

	if id, _ := r.Acquire(nil, domain.StrategyFIFO); id != "idle" {
		t.Errorf("expected idle (longer idle time), got %s", id)
	}

	// При полном равенстве — лексикографически меньший ID
	r = onlineRegistry(
		domain.Agent{ID: "bbb", MaxConcurrent: 5},
		domain.Agent{ID: "aaa", MaxConcurrent: 5},
	)
	base := time.Now()
	r.agents["aaa"].OnlineSince = base
	r.agents["bbb"].OnlineSince = base

	if id, _ := r.Acquire(nil, domain.StrategyFIFO); id != "aaa" {
		t.Errorf("expected aaa (lexical tie-break), got %s", id)
	}
}

func TestAcquire_LongestIdleIgnoresWeight(t *testing.T) {
	r := onlineRegistry(
		domain.Agent{ID: "heavy", Weight: 100},
		domain.Agent{ID: "idle", Weight: 0},
	)
	r.agents["idle"].OnlineSince = time.Now().Add(-time.Hour)

	id, err := r.Acquire(nil, domain.StrategyLongestIdle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "idle" {
		t.Errorf("longest-idle-agent should ignore weight, got %s", id)
	}
}

func TestAcquire_CapacityAndRelease(t *testing.T) {
	r := onlineRegistry(domain.Agent{ID: "a1", MaxConcurrent: 2})

	for i := 0; i < 2; i++ {
		if _, err := r.Acquire(nil, domain.StrategyFIFO); err != nil {
			t.Fatalf("acquire %d: %v", i+1, err)
		}
	}

	a, _ := r.Get("a1")
	if a.Status != domain.AgentOnCall || a.ActiveCalls != 2 {
		t.Errorf("expected ON_CALL with 2 calls, got %s/%d", a.Status, a.ActiveCalls)
	}

	if _, err := r.Acquire(nil, domain.StrategyFIFO); !errors.Is(err, ErrNoEligibleAgent) {
		t.Errorf("expected ErrNoEligibleAgent at capacity, got %v", err)
	}

	if err := r.Release("a1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	a, _ = r.Get("a1")
	if a.Status != domain.AgentOnline || a.ActiveCalls != 1 {
		t.Errorf("expected ONLINE with 1 call after release, got %s/%d", a.Status, a.ActiveCalls)
	}
}

func TestAcquire_ConcurrentNeverOversubscribes(t *testing.T) {
	const maxConcurrent = 3
	r := onlineRegistry(domain.Agent{ID: "a1", MaxConcurrent: maxConcurrent})

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Acquire(nil, domain.StrategyFIFO); err == nil {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if acquired != maxConcurrent {
		t.Errorf("expected exactly %d acquisitions, got %d", maxConcurrent, acquired)
	}
	a, _ := r.Get("a1")
	if a.ActiveCalls != maxConcurrent {
		t.Errorf("active_calls must equal max_concurrent, got %d", a.ActiveCalls)
	}
}
