package flow

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/Kommutator/internal/domain"
)

// Виды условий condition-узлов.
const (
	// ConditionBusinessHours — текущее время попадает в часы работы.
	ConditionBusinessHours = "business-hours"

	// ConditionCallerPrefix — номер звонящего начинается с одного из префиксов.
	ConditionCallerPrefix = "caller-prefix"
)

// cronParser — парсер cron-выражений часов работы.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// EvaluateCondition вычисляет условие condition-узла.
//
// Условие — чистая функция над данными сессии и текущим временем;
// внешние события не потребляются.
func EvaluateCondition(cond *domain.ConditionDef, sess *domain.CallSession, now time.Time) (bool, error) {
	if cond == nil {
		return false, ErrNoCondition
	}

	switch cond.Kind {
	case ConditionBusinessHours:
		return InBusinessHours(cond, now)

	case ConditionCallerPrefix:
		for _, prefix := range cond.Prefixes {
			if prefix != "" && strings.HasPrefix(sess.Caller, prefix) {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownCondition, cond.Kind)
	}
}

// InBusinessHours проверяет, попадает ли now в часы работы.
//
// Часы работы задаются cron-выражениями минутной гранулярности
// (например "* 9-17 * * 1-5" — будни с 09:00 до 17:59).
// Условие истинно, если текущая минута соответствует хотя бы
// одному выражению. Учитывает таймзону условия.
func InBusinessHours(cond *domain.ConditionDef, now time.Time) (bool, error) {
	loc := time.UTC
	if cond.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cond.Timezone)
		if err != nil {
			// Невалидная таймзона — fallback на UTC
			loc = time.UTC
		}
	}

	// Текущая минута в таймзоне условия
	minute := now.In(loc).Truncate(time.Minute)

	for _, expr := range cond.Cron {
		schedule, err := cronParser.Parse(expr)
		if err != nil {
			return false, fmt.Errorf("%w: %q: %v", ErrBadCronExpr, expr, err)
		}

		// Минута соответствует выражению, если Next от предыдущей
		// секунды возвращает ровно её
		if schedule.Next(minute.Add(-time.Second)).Equal(minute) {
			return true, nil
		}
	}

	return false, nil
}

// ValidateCronExpr проверяет валидность cron-выражения часов работы.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return nil
}
