package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v76"

	"github.com/angelmondragon/courseforge-backend/api/responses"
	pkgerrors "github.com/angelmondragon/courseforge-backend/pkg/errors"
	"github.com/angelmondragon/courseforge-backend/pkg/logger"
	"github.com/angelmondragon/courseforge-backend/pkg/metrics"
)

const (
	maxWebhookBody  = 1 << 16
	signatureHeader = "Stripe-Signature"
	provider        = "stripe"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type eventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type eventRecorder interface {
	IncEvent(provider, eventType, outcome string)
}

// StripeWebhook authenticates a Stripe delivery and hands it to svc once per
// event id. When svc fails the id is released so Stripe's retry runs again.
func StripeWebhook(svc StripeWebhookService, verifier eventVerifier, guard stripeWebhookGuard, recorder eventRecorder, logg *logger.Logger) http.HandlerFunc {
	if recorder == nil {
		recorder = (*metrics.WebhookMetrics)(nil)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || verifier == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook not configured"))
			return
		}

		signature := r.Header.Get(signatureHeader)
		if signature == "" {
			recorder.IncEvent(provider, "", metrics.WebhookRejected)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}
		event, err := verifier.ConstructEvent(payload, signature)
		if err != nil {
			recorder.IncEvent(provider, "", metrics.WebhookRejected)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "verify stripe signature"))
			return
		}

		eventType := string(event.Type)
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": eventType})
		}

		seen, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook idempotency"))
			return
		}
		if seen {
			recorder.IncEvent(provider, eventType, metrics.WebhookDuplicate)
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			recorder.IncEvent(provider, eventType, metrics.WebhookFailed)
			if delErr := guard.Delete(ctx, event.ID); delErr != nil && logg != nil {
				logg.Error(ctx, "stripe.event_release_failed", delErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		recorder.IncEvent(provider, eventType, metrics.WebhookProcessed)
		if logg != nil {
			logg.Info(ctx, "stripe.event_processed")
		}
		responses.WriteSuccess(w, nil)
	}
}
