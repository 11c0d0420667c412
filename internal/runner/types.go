package runner

import (
	"context"
	"time"
)

// DefaultGracefulStop matches k6's default gracefulStop.
const DefaultGracefulStop = 30 * time.Second

type Config struct {
	VUs      int
	Duration time.Duration
	// Pause after each iteration; zero means none.
	ThinkTime time.Duration
	// GracefulStop bounds how long in-flight calls may run past the end of
	// the load; zero means DefaultGracefulStop.
	GracefulStop time.Duration
}

// SetupContext is produced once before load starts and shared read-only by
// every virtual user.
type SetupContext struct {
	Token  string
	RoomID string
}

// Scenario is one load-test program: a one-time setup plus an iteration body
// executed repeatedly by each virtual user.
type Scenario interface {
	Name() string
	Setup(ctx context.Context) (SetupContext, error)
	// Iterate must record its own checks and samples and never panic on a
	// failed call; failures are measured, not enforced.
	Iterate(ctx context.Context, vu, iter int, sc SetupContext)
}

type Result struct {
	Scenario   string
	StartedAt  time.Time
	Elapsed    time.Duration
	Setup      SetupContext
	Iterations uint64
}
