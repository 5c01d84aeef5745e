package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/dataflows/internal/domain"
	"github.com/shaiso/dataflows/internal/flows"
	"github.com/shaiso/dataflows/internal/runner"
)

// Submitter запускает runs.
type Submitter interface {
	Submit(ctx context.Context, req runner.SubmitRequest) (*domain.Run, bool, error)
}

// NewFlowTriggerHandler возвращает обработчик flow.trigger:
// каждое сообщение становится run с trigger=queue.
//
// Неизвестный flow или битый payload — постоянная ошибка.
func NewFlowTriggerHandler(s Submitter, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg *Message) error {
		if msg.Type != MessageTypeFlowTrigger {
			return fmt.Errorf("%w: unexpected message type %q", ErrPermanent, msg.Type)
		}

		payload, err := ParsePayload[FlowTriggerPayload](msg)
		if err != nil {
			return err
		}
		if payload.FlowName == "" {
			return fmt.Errorf("%w: flow_name is required", ErrPermanent)
		}

		// Без ключа повторная доставка того же сообщения не создаст второй run.
		key := payload.IdempotencyKey
		if key == "" {
			key = "mq_" + msg.ID
		}

		run, created, err := s.Submit(ctx, runner.SubmitRequest{
			FlowName:       payload.FlowName,
			Trigger:        domain.TriggerQueue,
			Params:         payload.Params,
			IdempotencyKey: key,
		})
		if errors.Is(err, flows.ErrFlowNotFound) {
			return fmt.Errorf("%w: %w", ErrPermanent, err)
		}
		if err != nil {
			return fmt.Errorf("submit %q: %w", payload.FlowName, err)
		}

		logger.Info("run submitted from queue",
			"run_id", run.ID,
			"flow", payload.FlowName,
			"created", created,
			"message_id", msg.ID,
		)
		return nil
	}
}
