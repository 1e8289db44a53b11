// Package cancel implements the single run-wide cancellation flag shared by
// the dispatcher, the calculator backends, and the iterative driver's outer
// loop.
package cancel

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jihwankim/fzgo/pkg/logging"
)

// Controller is a single flag, polled between suspension points, that can be
// tripped by an OS signal, an explicit call, or a watched stop file.
type Controller struct {
	stopFile       string
	stopCh         chan struct{}
	stopped        bool
	reason         string
	mutex          sync.RWMutex
	callbacks      []func()
	pollInterval   time.Duration
	signalHandlers bool
	logger         *logging.Logger
}

// Config configures a Controller.
type Config struct {
	// StopFile, if set, is polled for existence; its appearance trips the
	// controller the same as a signal would.
	StopFile string

	// PollInterval for checking StopFile. Defaults to 1s.
	PollInterval time.Duration

	// EnableSignalHandlers installs SIGINT/SIGTERM handlers.
	EnableSignalHandlers bool

	Logger *logging.Logger
}

// New creates a Controller. Call Start to begin watching for trip conditions.
func New(cfg Config) *Controller {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger(logging.LoggerConfig{Level: logging.LogLevelError})
	}
	return &Controller{
		stopFile:       cfg.StopFile,
		stopCh:         make(chan struct{}),
		pollInterval:   cfg.PollInterval,
		signalHandlers: cfg.EnableSignalHandlers,
		logger:         cfg.Logger,
	}
}

// Start begins watching for SIGINT/SIGTERM (if enabled) and the stop file
// (if configured). Returns immediately; watchers run in their own
// goroutines and exit when ctx is done, or when the watcher itself has
// tripped the controller. A trip from another source (Stop, the other
// watcher) does not end them.
func (c *Controller) Start(ctx context.Context) {
	if c.stopFile != "" {
		go c.watchStopFile(ctx)
	}
	if c.signalHandlers {
		go c.watchSignals(ctx)
	}
}

func (c *Controller) watchStopFile(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(c.stopFile); err == nil {
				c.trip("stop file detected: " + c.stopFile)
				return
			}
		}
	}
}

func (c *Controller) watchSignals(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		return
	case sig := <-sigCh:
		c.trip("signal: " + sig.String())
	}
}

func (c *Controller) trip(reason string) {
	c.mutex.Lock()
	if c.stopped {
		c.mutex.Unlock()
		return
	}
	c.stopped = true
	c.reason = reason
	callbacks := append([]func(){}, c.callbacks...)
	close(c.stopCh)
	c.mutex.Unlock()

	c.logger.Warn("cancellation triggered", "reason", reason)
	for _, cb := range callbacks {
		safeCall(cb, c.logger)
	}
}

func safeCall(cb func(), logger *logging.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("cancellation callback panicked", "panic", r)
		}
	}()
	cb()
}

// Stop manually trips the controller.
func (c *Controller) Stop(reason string) { c.trip(reason) }

// IsStopped reports whether the controller has tripped.
func (c *Controller) IsStopped() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.stopped
}

// Reason returns the trip reason, or "" if not tripped.
func (c *Controller) Reason() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.reason
}

// StopChannel returns a channel that closes once the controller trips.
// Workers select on this alongside their own I/O to detect cancellation
// between suspension points.
func (c *Controller) StopChannel() <-chan struct{} {
	return c.stopCh
}

// OnStop registers a callback invoked (in trip order, synchronously, once)
// when the controller trips. Panicking callbacks are recovered and logged;
// they never prevent later callbacks from running.
func (c *Controller) OnStop(cb func()) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.stopped {
		go safeCall(cb, c.logger)
		return
	}
	c.callbacks = append(c.callbacks, cb)
}
