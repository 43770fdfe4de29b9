package whatsapp

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"groupcast/internal/engine"
	"groupcast/pkg/circuitbreaker"
	"groupcast/pkg/constants"
)

// ResilientClient wraps a Client with a circuit breaker so a misbehaving
// gateway fails jobs fast instead of tying up send goroutines.
type ResilientClient struct {
	client  *Client
	breaker *circuitbreaker.CircuitBreaker
}

// NewResilientClient wraps client with the default send breaker.
func NewResilientClient(client *Client, logger *logrus.Logger) *ResilientClient {
	return &ResilientClient{
		client: client,
		breaker: circuitbreaker.New(
			"whatsapp-send",
			constants.DefaultSendMaxFailures,
			time.Duration(constants.DefaultBreakerCooldownSec)*time.Second,
			logger,
		),
	}
}

// Send delivers through the breaker. An open circuit surfaces as a send
// error and the job fails like any other transport failure.
func (rc *ResilientClient) Send(ctx context.Context, target engine.SendTarget, text string) (*engine.SendResult, error) {
	var result *engine.SendResult
	err := rc.breaker.Execute(ctx, func(ctx context.Context) error {
		var sendErr error
		result, sendErr = rc.client.Send(ctx, target, text)
		return sendErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
