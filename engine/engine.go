package engine

import (
	"context"
	"os"
	"sync"
	"time"

	"ghostedit/edit"
	"ghostedit/logger"
	"ghostedit/suggestion"
	"ghostedit/types"
)

type EngineConfig struct {
	CompletionTimeout time.Duration // 0 = no timeout
}

type Engine struct {
	WorkspacePath string

	source     types.StreamSource
	buffer     Buffer
	ui         UI
	translator *edit.Translator
	state      state
	mu         sync.RWMutex
	eventChan  chan Event

	// Main context and cancel for the engine lifecycle
	mainCtx    context.Context
	mainCancel context.CancelFunc
	stopped    bool // guarded by mu
	stopOnce   sync.Once

	// Current request and its result
	session     *Session
	suggestions *suggestion.State

	config EngineConfig
}

func NewEngine(source types.StreamSource, buf Buffer, ui UI, config EngineConfig) *Engine {
	workspacePath, err := os.Getwd()
	if err != nil {
		logger.Warn("error getting current directory, using home: %v", err)
		workspacePath = "~"
	}

	mainCtx, mainCancel := context.WithCancel(context.Background())

	return &Engine{
		WorkspacePath: workspacePath,
		source:        source,
		buffer:        buf,
		ui:            ui,
		translator:    edit.NewTranslator(),
		state:         stateIdle,
		eventChan:     make(chan Event, 100),
		mainCtx:       mainCtx,
		mainCancel:    mainCancel,
		suggestions:   suggestion.NewState(),
		config:        config,
	}
}

// Start runs the event loop until ctx is done or Stop is called.
func (e *Engine) Start(ctx context.Context) {
	e.mu.RLock()
	stopped := e.stopped
	e.mu.RUnlock()
	if stopped {
		return
	}

	context.AfterFunc(ctx, e.Stop)
	go e.eventLoop(e.mainCtx)
	logger.Info("engine started")
}

// Stop gracefully shuts down the engine and cancels any in-flight request
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		logger.Info("stopping engine...")

		e.stopped = true
		e.mainCancel()
		if e.session != nil {
			e.session.Cancel()
			e.session = nil
		}
		e.suggestions.Clear()
		e.state = stateIdle

		logger.Info("engine stopped")
	})
}

// SetConfig replaces the engine configuration for later requests.
func (e *Engine) SetConfig(config EngineConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = config
}

// SetSource replaces the stream source for later requests.
func (e *Engine) SetSource(source types.StreamSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.source = source
}

// Listen routes events from src to the engine. It is called once per editor
// connection.
func (e *Engine) Listen(src EventSource) error {
	if err := src.RegisterEventHandler(func(event string) {
		eventType := EventTypeFromString(event)
		if eventType == "" {
			logger.Debug("ignoring unknown event %q", event)
			return
		}
		e.Post(Event{Type: eventType})
	}); err != nil {
		return err
	}
	return src.RegisterRequestHandler(func(userInput string) {
		e.Post(Event{Type: EventRequest, Data: userInput})
	})
}

// Post queues an event for the event loop. It blocks while the queue is full
// and returns without queuing once the engine is stopped.
func (e *Engine) Post(event Event) {
	e.mu.RLock()
	stopped := e.stopped
	e.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case e.eventChan <- event:
	case <-e.mainCtx.Done():
	}
}

func (e *Engine) eventLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event loop panic recovered: %v", r)
			e.eventLoop(ctx) // Restart the event loop
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-e.eventChan:
			// Wrap event handling in its own recovery
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("event handler panic recovered for event %v: %v", event.Type, r)
					}
				}()
				e.handleEvent(event)
			}()
		}
	}
}

func (e *Engine) handleEvent(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check we're not stopped while holding the lock
	if e.stopped {
		return
	}

	if event.Type != EventChunk {
		logger.Debug("handle event: %s (state=%s)", event.Type, e.state)
	}
	e.dispatch(event)
}

// isCurrent reports whether events from s should still be handled.
func (e *Engine) isCurrent(s *Session) bool {
	if s == nil || s != e.session || s.Cancelled() {
		logger.Debug("dropping event from stale session")
		return false
	}
	return true
}

// reject cancels any in-flight request, drops the suggestions and clears the UI.
func (e *Engine) reject() {
	if e.session != nil {
		e.session.Cancel()
		e.session = nil
	}
	hadSuggestions := e.suggestions.HasSuggestions()
	e.suggestions.Clear()
	if hadSuggestions {
		if err := e.ui.Clear(); err != nil {
			logger.Error("error clearing suggestions: %v", err)
		}
	}
	e.state = stateIdle
}
