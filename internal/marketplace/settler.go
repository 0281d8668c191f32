package marketplace

import (
	"context"
	"time"

	"github.com/Abdullah-z/instaBook-Server/internal/logger"
	"go.uber.org/zap"
)

// Settler drives periodic auction settlement. One pass runs to completion
// before the next tick fires, so passes never overlap.
type Settler struct {
	engine   *Engine
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewSettler creates the settlement ticker
func NewSettler(engine *Engine, interval time.Duration) *Settler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Settler{
		engine:   engine,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins periodic settlement
func (s *Settler) Start() {
	logger.Log.Info("Starting auction settler", zap.Duration("interval", s.interval))
	go s.run()
}

// Stop stops the settler
func (s *Settler) Stop() {
	logger.Log.Info("Stopping auction settler")
	s.cancel()
}

func (s *Settler) run() {
	// Run immediately on startup, then on interval.
	s.settle()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.settle()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Settler) settle() {
	if err := s.engine.SettleExpiredAuctions(s.ctx, time.Now().UTC()); err != nil {
		// Fatal for this tick only; the next tick re-derives its work set.
		logger.Log.Error("Settlement pass failed", zap.Error(err))
	}
}
