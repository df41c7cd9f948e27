package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/kasuwa-ng/marketplace-backend/pkg/logger"
	"github.com/kasuwa-ng/marketplace-backend/pkg/outbox/registry"
)

type subscription interface {
	Receive(ctx context.Context, f func(ctx context.Context, msg *gcppubsub.Message)) error
}

type messageHandler func(ctx context.Context, data []byte) error

// ServiceParams wire the gateway outcome subscriptions to their handlers.
type ServiceParams struct {
	Logger     *logger.Logger
	Payments   subscription
	Transfers  subscription
	OnPayment  messageHandler
	OnTransfer messageHandler
}

// Service pumps gateway outcome messages into the settlement consumer. A
// non-retryable handler error acks the message so poison payloads do not
// wedge the subscription; everything else nacks for redelivery.
type Service struct {
	logg       *logger.Logger
	payments   subscription
	transfers  subscription
	onPayment  messageHandler
	onTransfer messageHandler
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Payments == nil {
		return nil, errors.New("payments subscription is required")
	}
	if params.Transfers == nil {
		return nil, errors.New("transfers subscription is required")
	}
	if params.OnPayment == nil {
		return nil, errors.New("payment handler is required")
	}
	if params.OnTransfer == nil {
		return nil, errors.New("transfer handler is required")
	}
	return &Service{
		logg:       params.Logger,
		payments:   params.Payments,
		transfers:  params.Transfers,
		onPayment:  params.OnPayment,
		onTransfer: params.OnTransfer,
	}, nil
}

// Run consumes both subscriptions until the context is canceled or one
// receive loop fails.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)
	go func() {
		errs <- s.payments.Receive(runCtx, s.dispatch("payments", s.onPayment))
	}()
	go func() {
		errs <- s.transfers.Receive(runCtx, s.dispatch("transfers", s.onTransfer))
	}()

	err := <-errs
	cancel()
	<-errs
	return err
}

type processResult struct {
	nack bool
}

func (s *Service) dispatch(stream string, handle messageHandler) func(ctx context.Context, msg *gcppubsub.Message) {
	return func(ctx context.Context, msg *gcppubsub.Message) {
		res := s.process(ctx, stream, msg, handle)
		if res.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	}
}

func (s *Service) process(ctx context.Context, stream string, msg *gcppubsub.Message, handle messageHandler) processResult {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"stream":     stream,
		"message_id": msg.ID,
	})
	err := handle(logCtx, msg.Data)
	if err == nil {
		return processResult{}
	}
	var nonRetryable registry.NonRetryableError
	if errors.As(err, &nonRetryable) {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "dropping non-retryable message")
		return processResult{}
	}
	s.logg.Error(logCtx, "message handling failed, nacking", err)
	return processResult{nack: true}
}
