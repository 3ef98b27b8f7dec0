package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"

	"internet-store/storeinit/internal/config"
	"internet-store/storeinit/internal/orchestrator"
)

const (
	natsProbeName = "nats"

	eventRetention = 7 * 24 * time.Hour
)

// jsContext is the subset of nats.JetStreamContext used to provision the event
// stream and publish to it. Defining an interface here allows test doubles to
// be injected without a live NATS server.
type jsContext interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSClient announces completed bootstraps on a JetStream subject. It
// implements orchestrator.Announcer.
type NATSClient struct {
	url     string
	stream  string
	subject string
	cb      *gobreaker.CircuitBreaker
	newJS   func(url string) (jsContext, func(), error)
}

// NewNATSClient constructs a NATSClient. No connection is made at construction
// time; each Announce and Probe opens and closes its own connection.
func NewNATSClient(cfg config.NATSConfig, cb *gobreaker.CircuitBreaker) *NATSClient {
	return &NATSClient{
		url:     cfg.URL,
		stream:  cfg.Stream,
		subject: cfg.Subject,
		cb:      cb,
		newJS:   realNewJS,
	}
}

// Announce makes sure the event stream exists, then publishes ev on the
// completion subject. The run ID is used as the JetStream message ID so a
// retried publish is deduplicated by the server.
func (c *NATSClient) Announce(ctx context.Context, ev orchestrator.BootstrapEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding bootstrap event: %w", err)
	}

	_, err = c.cb.Execute(func() (any, error) {
		js, cleanup, err := c.newJS(c.url)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		defer cleanup()

		if err := c.provisionStream(ctx, js); err != nil {
			return nil, err
		}
		if _, err := js.Publish(c.subject, payload, nats.Context(ctx), nats.MsgId(ev.RunID)); err != nil {
			return nil, fmt.Errorf("publishing to %s: %w", c.subject, err)
		}
		return nil, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return fmt.Errorf("circuit open: %w", err)
		}
		return err
	}
	return nil
}

// Probe verifies NATS connectivity and returns a ProbeResult. A missing stream
// is not treated as a failure; it is created on the first announcement.
func (c *NATSClient) Probe(ctx context.Context) orchestrator.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		js, cleanup, err := c.newJS(c.url)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		defer cleanup()

		_, infoErr := js.StreamInfo(c.stream, nats.Context(ctx))
		if infoErr != nil && !errors.Is(infoErr, nats.ErrStreamNotFound) {
			return nil, fmt.Errorf("stream info: %w", infoErr)
		}
		return nil, nil
	})

	latency := time.Since(start).Milliseconds()

	if err != nil {
		return orchestrator.ProbeResult{
			Name:      natsProbeName,
			OK:        false,
			LatencyMs: latency,
			Error:     breakerMessage(err),
		}
	}

	return orchestrator.ProbeResult{
		Name:      natsProbeName,
		OK:        true,
		LatencyMs: latency,
	}
}

// provisionStream creates the event stream if it does not exist, or updates it
// if it does. nats.ErrStreamNotFound signals "create"; any other error is
// returned.
func (c *NATSClient) provisionStream(ctx context.Context, js jsContext) error {
	cfg := &nats.StreamConfig{
		Name:      c.stream,
		Subjects:  []string{c.subject},
		Retention: nats.LimitsPolicy,
		MaxAge:    eventRetention,
	}

	_, err := js.StreamInfo(c.stream, nats.Context(ctx))
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		if _, addErr := js.AddStream(cfg, nats.Context(ctx)); addErr != nil {
			return fmt.Errorf("creating stream %s: %w", c.stream, addErr)
		}
	case err != nil:
		return fmt.Errorf("querying stream %s: %w", c.stream, err)
	default:
		if _, updErr := js.UpdateStream(cfg, nats.Context(ctx)); updErr != nil {
			return fmt.Errorf("updating stream %s: %w", c.stream, updErr)
		}
	}
	return nil
}

// realNewJS opens a real NATS connection and returns a JetStreamContext plus a
// cleanup function that closes the connection.
func realNewJS(url string) (jsContext, func(), error) {
	nc, err := nats.Connect(url, nats.Name("storeinit"))
	if err != nil {
		return nil, func() {}, fmt.Errorf("nats connect %s: %w", url, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, func() {}, fmt.Errorf("nats jetstream context: %w", err)
	}

	return js, func() { nc.Close() }, nil
}
