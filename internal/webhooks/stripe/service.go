package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"

	"github.com/angelmondragon/courseforge-backend/internal/purchases"
	pkgerrors "github.com/angelmondragon/courseforge-backend/pkg/errors"
	"github.com/angelmondragon/courseforge-backend/pkg/logger"
)

const (
	eventCheckoutSessionCompleted             = "checkout.session.completed"
	eventCheckoutSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"

	metadataUserID   = "user_id"
	metadataCourseID = "course_id"
)

type purchaseCompleter interface {
	Complete(ctx context.Context, input purchases.CompleteInput) (*purchases.CompleteResult, error)
}

type Service struct {
	purchases purchaseCompleter
	logg      *logger.Logger
}

func NewService(completer purchaseCompleter, logg *logger.Logger) (*Service, error) {
	if completer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchases service required")
	}
	return &Service{purchases: completer, logg: logg}, nil
}

// HandleEvent turns paid checkout sessions into completed purchases. Event
// types it does not know are acknowledged without side effects.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case eventCheckoutSessionCompleted, eventCheckoutSessionAsyncPaymentSucceeded:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		return s.completeCheckout(ctx, &session)
	default:
		s.info(ctx, map[string]any{"event_id": event.ID, "event_type": event.Type}, "stripe.event_ignored")
		return nil
	}
}

func (s *Service) completeCheckout(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		// Async payment methods settle later through async_payment_succeeded.
		s.info(ctx, map[string]any{"session_id": session.ID}, "stripe.checkout_unpaid")
		return nil
	}

	input, err := completeInputFromSession(session)
	if err != nil {
		return err
	}
	result, err := s.purchases.Complete(ctx, input)
	if err != nil {
		return err
	}
	s.info(ctx, map[string]any{
		"session_id":  session.ID,
		"purchase_id": result.Purchase.ID,
		"duplicate":   result.Duplicate,
		"commissions": len(result.Commissions),
	}, "stripe.checkout_completed")
	return nil
}

func completeInputFromSession(session *stripe.CheckoutSession) (purchases.CompleteInput, error) {
	var input purchases.CompleteInput
	if strings.TrimSpace(session.ID) == "" {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	buyerID, err := uuidFromMetadata(session.Metadata, metadataUserID)
	if err != nil {
		return input, err
	}
	courseID, err := uuidFromMetadata(session.Metadata, metadataCourseID)
	if err != nil {
		return input, err
	}
	if session.AmountTotal < 0 {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "checkout amount must be non-negative")
	}
	return purchases.CompleteInput{
		BuyerID:    buyerID,
		CourseID:   courseID,
		Amount:     decimal.New(session.AmountTotal, -2),
		ExternalID: session.ID,
	}, nil
}

func uuidFromMetadata(metadata map[string]string, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(metadata[key])
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s metadata missing", key))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("%s metadata invalid", key))
	}
	return id, nil
}

func (s *Service) info(ctx context.Context, fields map[string]any, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), msg)
}
