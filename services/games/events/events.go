package events

import (
	"log/slog"
	"sync"

	"github.com/rhythmerc/gentro-library/services/games/models"
)

type (
	ProgressHandler func(current, total int)
	FinishedHandler func(games []models.Game)
	ErrorHandler    func(message string)
)

// Events logs pipeline signals and fans them out to subscribers.
// Handlers run synchronously on the emitting goroutine.
type Events struct {
	logger *slog.Logger

	mu       sync.RWMutex
	progress []ProgressHandler
	finished []FinishedHandler
	errors   []ErrorHandler
}

// NewEvents creates a hub that logs through logger; a nil logger disables logging
func NewEvents(logger *slog.Logger) *Events {
	return &Events{logger: logger}
}

// OnProgress subscribes h to batch progress
func (e *Events) OnProgress(h ProgressHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress = append(e.progress, h)
}

// OnFinished subscribes h to run completion
func (e *Events) OnFinished(h FinishedHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = append(e.finished, h)
}

// OnError subscribes h to pipeline errors
func (e *Events) OnError(h ErrorHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors = append(e.errors, h)
}

// EmitProgress reports current of total games processed
func (e *Events) EmitProgress(current, total int) {
	if e.logger != nil {
		e.logger.Info("metadata progress",
			"current", current,
			"total", total,
		)
	}

	e.mu.RLock()
	handlers := e.progress
	e.mu.RUnlock()
	for _, h := range handlers {
		h(current, total)
	}
}

// EmitFinished publishes the full game list of a completed run
func (e *Events) EmitFinished(games []models.Game) {
	if e.logger != nil {
		e.logger.Info("metadata fetch finished", "games", len(games))
	}

	e.mu.RLock()
	handlers := e.finished
	e.mu.RUnlock()
	for _, h := range handlers {
		h(games)
	}
}

// EmitError reports a failure message
func (e *Events) EmitError(message string) {
	if e.logger != nil {
		e.logger.Error("metadata fetch error", "message", message)
	}

	e.mu.RLock()
	handlers := e.errors
	e.mu.RUnlock()
	for _, h := range handlers {
		h(message)
	}
}
