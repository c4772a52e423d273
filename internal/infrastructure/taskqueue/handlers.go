package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/orris-inc/autopay/internal/application/common"
	paymentUsecases "github.com/orris-inc/autopay/internal/application/payment/usecases"
	"github.com/orris-inc/autopay/internal/application/tasks"
	"github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

type SubscriptionProcessor interface {
	Execute(ctx context.Context, subscriptionID uint) (*common.Result, error)
}

type PaymentRetrier interface {
	Execute(ctx context.Context, paymentID uint, attempt int) (*common.Result, error)
}

type PaymentRefunder interface {
	Execute(ctx context.Context, cmd paymentUsecases.RefundPaymentCommand) (*common.Result, error)
}

// RegisterHandlers binds the engine's task types to their use cases.
func RegisterHandlers(w *Worker, processor SubscriptionProcessor, retrier PaymentRetrier, refunder PaymentRefunder, log logger.Interface) {
	w.Register(tasks.TypeProcessSubscription, func(ctx context.Context, raw json.RawMessage) error {
		var p tasks.ProcessSubscriptionPayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		result, err := processor.Execute(ctx, p.SubscriptionID)
		if err != nil {
			return classify(err)
		}
		logResult(log, tasks.TypeProcessSubscription, result, "subscription_id", p.SubscriptionID)
		return nil
	})

	w.Register(tasks.TypeRetryPayment, func(ctx context.Context, raw json.RawMessage) error {
		var p tasks.RetryPaymentPayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		result, err := retrier.Execute(ctx, p.PaymentID, p.Attempt)
		if err != nil {
			return classify(err)
		}
		logResult(log, tasks.TypeRetryPayment, result, "payment_id", p.PaymentID, "attempt", p.Attempt)
		return nil
	})

	w.Register(tasks.TypeRefundPayment, func(ctx context.Context, raw json.RawMessage) error {
		var p tasks.RefundPaymentPayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		cmd := paymentUsecases.RefundPaymentCommand{PaymentID: p.PaymentID, ChargeID: p.ChargeID, Reason: p.Reason}
		if p.Amount != "" {
			amount, err := decimal.NewFromString(p.Amount)
			if err != nil {
				return Permanent(fmt.Errorf("invalid refund amount %q: %w", p.Amount, err))
			}
			cmd.Amount = &amount
		}

		result, err := refunder.Execute(ctx, cmd)
		if err != nil {
			if errors.IsConflictError(err) {
				log.Infow("refund already issued, task done", "payment_id", p.PaymentID)
				return nil
			}
			return classify(err)
		}
		logResult(log, tasks.TypeRefundPayment, result, "payment_id", p.PaymentID)
		return nil
	})
}

func decode(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return Permanent(fmt.Errorf("invalid task payload: %w", err))
	}
	return nil
}

// classify stops retrying errors that repeating cannot fix.
func classify(err error) error {
	if errors.IsValidationError(err) || errors.IsNotFoundError(err) {
		return Permanent(err)
	}
	return err
}

func logResult(log logger.Interface, taskType string, result *common.Result, keysAndValues ...any) {
	if result == nil {
		return
	}
	fields := append([]any{
		"task_type", taskType,
		"success", result.Success,
		"skipped", result.Skipped,
		"final", result.Final,
		"reason", result.Reason,
	}, keysAndValues...)
	log.Infow("task handled", fields...)
}
