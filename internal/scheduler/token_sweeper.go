package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/textsync/internal/logger"
	"github.com/MrSnakeDoc/textsync/internal/metrics"
)

// DefaultSweepInterval is used when no interval is configured.
const DefaultSweepInterval = 24 * time.Hour

// Sweeper deletes expired tokens. domain.TokenStore implements it.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// TokenSweeper periodically removes expired tokens so that abandoned
// sessions do not accumulate.
type TokenSweeper struct {
	tokens   Sweeper
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	done     chan struct{}
}

// NewTokenSweeper creates a token sweeper.
func NewTokenSweeper(tokens Sweeper, log logger.Logger, interval time.Duration) *TokenSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &TokenSweeper{
		tokens:   tokens,
		logger:   log.With(logger.String("worker", "token_sweeper")),
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start sweeps once, then on every tick until Stop or ctx is done.
func (ts *TokenSweeper) Start(ctx context.Context) error {
	if _, err := ts.Sweep(ctx); err != nil {
		ts.logger.Warn("initial token sweep failed", logger.Error(err))
	}

	ticker := time.NewTicker(ts.interval)
	go func() {
		defer close(ts.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := ts.Sweep(ctx); err != nil {
					ts.logger.Error("token sweep failed", logger.Error(err))
				}
			case <-ts.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the sweeper and waits for an in-flight sweep to finish.
func (ts *TokenSweeper) Stop() {
	close(ts.stopCh)
	<-ts.done
}

// Sweep deletes expired tokens once.
func (ts *TokenSweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := ts.tokens.Sweep(ctx)
	if err != nil {
		return 0, err
	}
	metrics.AddTokensSwept(n)

	if n > 0 {
		ts.logger.Info("expired tokens swept", logger.Int64("deleted", n))
	} else {
		ts.logger.Debug("no expired tokens to sweep")
	}
	return n, nil
}
