package engine

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/dataflows/internal/domain"
)

// Допустимые типы шагов.
var validStepTypes = map[string]bool{
	"query":     true,
	"transform": true,
	"validate":  true,
	"record":    true,
	"load":      true,
	"trigger":   true,
	"wait":      true,
}

// Допустимые стратегии задержки между попытками.
var validBackoffs = map[string]bool{
	"":            true,
	"fixed":       true,
	"exponential": true,
}

// Validate выполняет полную валидацию FlowSpec.
//
// Проверяет:
// - Наличие имени и шагов
// - Уникальность ID шагов
// - Корректность типов шагов, retry и таймаутов
// - Валидность зависимостей (depends_on)
// - Отсутствие циклов (делегируется DAG)
func Validate(spec *domain.FlowSpec) error {
	if spec == nil || len(spec.Steps) == 0 {
		return ErrEmptySteps
	}

	if spec.Name == "" {
		return NewValidationError("", "name", "flow has empty name", ErrEmptyFlowName)
	}

	if err := validateSchedule(spec.Schedule); err != nil {
		return err
	}

	stepIDs := make(map[string]bool, len(spec.Steps))

	for i := range spec.Steps {
		if err := ValidateStep(&spec.Steps[i], stepIDs); err != nil {
			return err
		}
	}

	if err := validateDependencies(spec.Steps, stepIDs); err != nil {
		return err
	}

	if _, err := BuildDAG(spec); err != nil {
		return err
	}

	return nil
}

// ValidateStep валидирует один шаг.
// stepIDs — уже встреченные ID шагов (для проверки уникальности).
func ValidateStep(step *domain.StepDef, stepIDs map[string]bool) error {
	if step.ID == "" {
		return NewValidationError("", "id", "step has empty ID", ErrEmptyStepID)
	}

	if stepIDs[step.ID] {
		return NewValidationError(step.ID, "id",
			fmt.Sprintf("duplicate step ID: %s", step.ID), ErrDuplicateStepID)
	}
	stepIDs[step.ID] = true

	if err := validateStepType(step.ID, step.Type); err != nil {
		return err
	}

	for _, dep := range step.DependsOn {
		if dep == step.ID {
			return NewValidationError(step.ID, "depends_on",
				"step depends on itself", ErrSelfDependency)
		}
	}

	if step.TimeoutSec < 0 {
		return NewValidationError(step.ID, "timeout_sec",
			fmt.Sprintf("negative timeout: %d", step.TimeoutSec), ErrInvalidTimeout)
	}

	return validateRetry(step.ID, step.Retry)
}

// validateStepType проверяет, что тип шага известен.
func validateStepType(stepID, stepType string) error {
	if stepType == "" {
		return NewValidationError(stepID, "type",
			"step has empty type", ErrUnknownStepType)
	}

	if !validStepTypes[stepType] {
		return NewValidationError(stepID, "type",
			fmt.Sprintf("unknown step type: %s", stepType), ErrUnknownStepType)
	}

	return nil
}

// validateRetry проверяет политику повторов шага.
func validateRetry(stepID string, retry *domain.RetryPolicy) error {
	if retry == nil {
		return nil
	}

	if retry.MaxAttempts < 0 {
		return NewValidationError(stepID, "retry.max_attempts",
			fmt.Sprintf("negative max_attempts: %d", retry.MaxAttempts), ErrInvalidRetry)
	}

	if !validBackoffs[retry.Backoff] {
		return NewValidationError(stepID, "retry.backoff",
			fmt.Sprintf("unknown backoff: %s", retry.Backoff), ErrInvalidRetry)
	}

	if retry.InitialDelayMs < 0 || retry.MaxDelayMs < 0 {
		return NewValidationError(stepID, "retry",
			"negative retry delay", ErrInvalidRetry)
	}

	return nil
}

// validateSchedule проверяет расписание, объявленное во flow.
func validateSchedule(schedule *domain.ScheduleDef) error {
	if schedule == nil {
		return nil
	}

	if schedule.CronExpr == "" && schedule.IntervalSec <= 0 {
		return NewValidationError("", "schedule",
			"schedule needs interval_sec or cron_expr", ErrInvalidSchedule)
	}

	if schedule.CronExpr != "" {
		if _, err := cron.ParseStandard(schedule.CronExpr); err != nil {
			return NewValidationError("", "schedule.cron_expr",
				err.Error(), ErrInvalidSchedule)
		}
	}

	return nil
}

// validateDependencies проверяет, что все depends_on ссылаются на существующие шаги.
func validateDependencies(steps []domain.StepDef, stepIDs map[string]bool) error {
	for i := range steps {
		step := &steps[i]

		for _, dep := range step.DependsOn {
			if !stepIDs[dep] {
				return NewValidationError(step.ID, "depends_on",
					fmt.Sprintf("depends on unknown step: %s", dep), ErrMissingDependency)
			}
		}
	}

	return nil
}

// IsValidStepType проверяет, является ли тип шага допустимым.
func IsValidStepType(stepType string) bool {
	return validStepTypes[stepType]
}
