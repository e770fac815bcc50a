package application

import (
	"context"
	"log/slog"
	"time"
)

// GovernorConfig describes the remote quota: Limit destructive calls per Window.
type GovernorConfig struct {
	// Limit is the number of calls allowed per window.
	Limit int
	// Window is the quota window length.
	Window time.Duration
	// Margin is subtracted from Limit to decide when to pause proactively.
	Margin int
	// Buffer is added to every pause.
	Buffer time.Duration
}

// DefaultGovernorConfig matches the X API v2 delete quota: 50 per 15 minutes.
func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		Limit:  50,
		Window: 15 * time.Minute,
		Margin: 2,
		Buffer: 5 * time.Second,
	}
}

// RateGovernor counts destructive calls since the last pause and decides when
// the next call must wait for the window to roll over.
type RateGovernor struct {
	config  GovernorConfig
	sleeper Sleeper
	logger  *slog.Logger
	calls   int
	pauses  int
}

// NewRateGovernor creates a governor. A nil sleeper uses NewContextSleeper.
func NewRateGovernor(config GovernorConfig, sleeper Sleeper, logger *slog.Logger) *RateGovernor {
	if logger == nil {
		logger = slog.Default()
	}
	if sleeper == nil {
		sleeper = NewContextSleeper(30*time.Second, logger)
	}
	if config.Limit <= 0 {
		config.Limit = DefaultGovernorConfig().Limit
	}
	if config.Margin < 0 || config.Margin >= config.Limit {
		config.Margin = 0
	}
	return &RateGovernor{
		config:  config,
		sleeper: sleeper,
		logger:  logger,
	}
}

// Record counts one destructive call.
func (g *RateGovernor) Record() {
	g.calls++
}

// Calls returns the number of calls recorded since the last pause.
func (g *RateGovernor) Calls() int {
	return g.calls
}

// Pauses returns how many times the governor has blocked.
func (g *RateGovernor) Pauses() int {
	return g.pauses
}

// ShouldPause reports whether the call budget for the window is used up.
func (g *RateGovernor) ShouldPause() bool {
	return g.calls >= g.config.Limit-g.config.Margin
}

// PauseDuration is the full window plus the safety buffer.
func (g *RateGovernor) PauseDuration() time.Duration {
	return g.config.Window + g.config.Buffer
}

// Pause blocks for the rest of the window and resets the counter.
// It returns ctx.Err() if interrupted; the counter is left untouched then.
func (g *RateGovernor) Pause(ctx context.Context) error {
	return g.block(ctx, "rate window pause")
}

// Wait is the reactive path taken after the remote side reported a rate
// limit. It blocks for the same duration as Pause.
func (g *RateGovernor) Wait(ctx context.Context) error {
	return g.block(ctx, "rate limited by remote, waiting")
}

func (g *RateGovernor) block(ctx context.Context, msg string) error {
	d := g.PauseDuration()
	g.logger.InfoContext(ctx, msg,
		"calls", g.calls,
		"limit", g.config.Limit,
		"duration", d.String(),
	)
	if err := g.sleeper.Sleep(ctx, d); err != nil {
		return err
	}
	g.calls = 0
	g.pauses++
	return nil
}

// ContextSleeper sleeps in ticks so long waits report progress and stop as
// soon as the context is cancelled.
type ContextSleeper struct {
	tick   time.Duration
	logger *slog.Logger
}

// NewContextSleeper creates a sleeper that logs the remaining time every tick.
func NewContextSleeper(tick time.Duration, logger *slog.Logger) *ContextSleeper {
	if logger == nil {
		logger = slog.Default()
	}
	if tick <= 0 {
		tick = 30 * time.Second
	}
	return &ContextSleeper{tick: tick, logger: logger}
}

// Sleep waits for d or until ctx is done.
func (s *ContextSleeper) Sleep(ctx context.Context, d time.Duration) error {
	deadline := time.Now().Add(d)
	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-ticker.C:
			s.logger.Info("waiting for rate window", "remaining", time.Until(deadline).Round(time.Second).String())
		}
	}
}
