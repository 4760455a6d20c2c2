package flow

import (
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Kommutator/internal/domain"
)

func TestInBusinessHours_Weekdays(t *testing.T) {
	cond := &domain.ConditionDef{
		Kind: ConditionBusinessHours,
		Cron: []string{"* 9-17 * * 1-5"},
	}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"wednesday morning", time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC), true},
		{"wednesday opening minute", time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC), true},
		{"wednesday last minute", time.Date(2026, 3, 4, 17, 59, 0, 0, time.UTC), true},
		{"wednesday after hours", time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC), false},
		{"wednesday early", time.Date(2026, 3, 4, 8, 59, 0, 0, time.UTC), false},
		{"saturday", time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := InBusinessHours(cond, tc.now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %v for %s", tc.want, tc.now)
			}
		})
	}
}

func TestInBusinessHours_Timezone(t *testing.T) {
	cond := &domain.ConditionDef{
		Kind:     ConditionBusinessHours,
		Cron:     []string{"* 9-17 * * 1-5"},
		Timezone: "Europe/Moscow",
	}

	// 06:30 UTC = 09:30 MSK — рабочее время в Москве, но не в UTC
	now := time.Date(2026, 3, 4, 6, 30, 0, 0, time.UTC)
	got, err := InBusinessHours(cond, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("06:30 UTC should be business hours in Europe/Moscow")
	}
}

func TestInBusinessHours_MultipleWindows(t *testing.T) {
	// Будни 9-17 плюс суббота 10-13
	cond := &domain.ConditionDef{
		Kind: ConditionBusinessHours,
		Cron: []string{"* 9-17 * * 1-5", "* 10-13 * * 6"},
	}

	sat := time.Date(2026, 3, 7, 11, 0, 0, 0, time.UTC)
	got, err := InBusinessHours(cond, sat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("saturday 11:00 should match the second window")
	}
}

func TestInBusinessHours_BadExpression(t *testing.T) {
	cond := &domain.ConditionDef{
		Kind: ConditionBusinessHours,
		Cron: []string{"nope"},
	}
	if _, err := InBusinessHours(cond, time.Now()); !errors.Is(err, ErrBadCronExpr) {
		t.Errorf("expected ErrBadCronExpr, got %v", err)
	}
}

func TestEvaluateCondition_CallerPrefix(t *testing.T) {
	cond := &domain.ConditionDef{
		Kind:     ConditionCallerPrefix,
		Prefixes: []string{"+7916", "+7917"},
	}

	sess := &domain.CallSession{Caller: "+79161234567"}
	got, err := EvaluateCondition(cond, sess, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("caller +79161234567 should match prefix +7916")
	}

	sess.Caller = "+74951234567"
	got, err = EvaluateCondition(cond, sess, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("caller +7495... should not match")
	}
}

func TestEvaluateCondition_Errors(t *testing.T) {
	sess := &domain.CallSession{}

	if _, err := EvaluateCondition(nil, sess, time.Now()); !errors.Is(err, ErrNoCondition) {
		t.Errorf("expected ErrNoCondition, got %v", err)
	}

	cond := &domain.ConditionDef{Kind: "moon-phase"}
	if _, err := EvaluateCondition(cond, sess, time.Now()); !errors.Is(err, ErrUnknownCondition) {
		t.Errorf("expected ErrUnknownCondition, got %v", err)
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("* 9-17 * * 1-5"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateCronExpr("61 * * * *"); err == nil {
		t.Error("expected error for out-of-range minute")
	}
}
