package clients

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// NewCircuitBreaker returns a gobreaker configured to trip after 3 consecutive
// failures and reset after 30 seconds in the open state. State changes are
// logged so a tripped dependency shows up next to the bootstrap output.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// breakerMessage renders err for a ProbeResult, collapsing the open-state
// error to a short marker.
func breakerMessage(err error) string {
	if errors.Is(err, gobreaker.ErrOpenState) {
		return "circuit open"
	}
	return err.Error()
}
