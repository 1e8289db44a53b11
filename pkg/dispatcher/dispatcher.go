// Package dispatcher implements the case dispatcher (C5): the worker pool
// that walks each compiled case through its calculator chain — cache
// backends first, then the remaining calculators round-robin from a
// worker-local offset — retrying with bounded jittered backoff until the
// case succeeds, fails out its retry budget, or the run is cancelled.
package dispatcher

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/JekaMas/workerpool"
	"golang.org/x/time/rate"

	"github.com/jihwankim/fzgo/pkg/calculator"
	"github.com/jihwankim/fzgo/pkg/cancel"
	"github.com/jihwankim/fzgo/pkg/extract"
	"github.com/jihwankim/fzgo/pkg/logging"
	"github.com/jihwankim/fzgo/pkg/model"
	"github.com/jihwankim/fzgo/pkg/template"
)

// CaseResult is one case's final outcome, mirroring the distilled record:
// assignments, directory, status, outputs, and bookkeeping.
type CaseResult struct {
	Case       model.Case
	Dir        string
	Status     calculator.Status
	Outputs    map[string]any
	Calculator string
	Command    string
	Error      string
	DurationS  float64
}

// recognizedCallbacks is the fixed, closed set of callback names the
// engine accepts; anything else is rejected at construction.
var recognizedCallbacks = map[string]bool{
	"on_start": true, "on_case_start": true, "on_case_complete": true,
	"on_progress": true, "on_complete": true,
}

// Callbacks is the lifecycle callback table. Every entry is optional and
// is invoked synchronously from the worker that produced the event, with
// panics recovered so a misbehaving callback never kills the run.
type Callbacks struct {
	OnStart        func(totalCases int)
	OnCaseStart    func(c model.Case, dir string)
	OnCaseComplete func(r CaseResult)
	OnProgress     func(done, total int)
	OnComplete     func(results []CaseResult)
}

// ValidateCallbackNames checks a caller-supplied set of callback names
// (e.g. from a plugin config) against the fixed recognized set.
func ValidateCallbackNames(names []string) error {
	for _, n := range names {
		if !recognizedCallbacks[n] {
			return fmt.Errorf("unrecognized callback %q", n)
		}
	}
	return nil
}

// Config configures one dispatcher run.
type Config struct {
	Calculators []string // ordered URIs; cache:// entries are tried first regardless of position
	MaxRetries  int
	MaxWorkers  int // 0 means auto: len(Calculators), at least 1
	Model       model.Model
	Resolver    *extract.ShellResolver
	Cancel      *cancel.Controller
	Logger      *logging.Logger
	Metrics     *Metrics // optional; nil records nothing
}

// Dispatcher runs a batch of compiled cases against a chain of calculator
// backends with bounded concurrency.
type Dispatcher struct {
	cfg        Config
	backends   map[string]calculator.Backend
	cacheURIs  []string
	otherURIs  []string
	logger     *logging.Logger
}

// New builds a Dispatcher. backends maps each distinct scheme in
// cfg.Calculators ("sh", "ssh", "cache", "funz") to its implementation.
func New(cfg Config, backends map[string]calculator.Backend) (*Dispatcher, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger(logging.LoggerConfig{Level: logging.LogLevelError})
	}

	d := &Dispatcher{cfg: cfg, backends: backends, logger: cfg.Logger}
	for _, uri := range cfg.Calculators {
		parsed, err := calculator.ParseURI(uri)
		if err != nil {
			return nil, err
		}
		if parsed.Scheme == "cache" {
			d.cacheURIs = append(d.cacheURIs, uri)
		} else {
			d.otherURIs = append(d.otherURIs, uri)
		}
		if _, ok := backends[parsed.Scheme]; !ok {
			return nil, fmt.Errorf("no backend registered for calculator scheme %q", parsed.Scheme)
		}
	}
	return d, nil
}

// Run dispatches every compiled case through the calculator chain,
// respecting ctx and the configured cancellation controller, and returns
// results in case-enumeration order.
func (d *Dispatcher) Run(ctx context.Context, cases []template.CompiledCase, cb Callbacks) []CaseResult {
	results := make([]CaseResult, len(cases))
	var completed int
	var mu sync.Mutex

	workers := d.cfg.MaxWorkers
	if workers <= 0 {
		workers = len(d.cfg.Calculators)
		if workers < 1 {
			workers = 1
		}
	}

	if cb.OnStart != nil {
		safeCallback(d.logger, func() { cb.OnStart(len(cases)) })
	}

	wp := workerpool.New(workers)
	for i, c := range cases {
		idx, cc := i, c
		workerOffset := idx % max(1, len(d.otherURIs))
		wp.Submit(func() {
			if d.cfg.Cancel != nil && d.cfg.Cancel.IsStopped() {
				results[idx] = cancelledResult(cc)
				d.afterCase(results[idx], cb, &completed, len(cases), &mu)
				return
			}
			if cb.OnCaseStart != nil {
				safeCallback(d.logger, func() { cb.OnCaseStart(cc.Case, cc.Dir) })
			}
			r := d.runCase(ctx, cc, workerOffset)
			results[idx] = r
			d.afterCase(r, cb, &completed, len(cases), &mu)
		})
	}
	wp.StopWait()

	if cb.OnComplete != nil {
		safeCallback(d.logger, func() { cb.OnComplete(results) })
	}
	return results
}

func (d *Dispatcher) afterCase(r CaseResult, cb Callbacks, completed *int, total int, mu *sync.Mutex) {
	mu.Lock()
	*completed++
	done := *completed
	mu.Unlock()

	d.cfg.Metrics.observe(r)

	if cb.OnCaseComplete != nil {
		safeCallback(d.logger, func() { cb.OnCaseComplete(r) })
	}
	if cb.OnProgress != nil {
		safeCallback(d.logger, func() { cb.OnProgress(done, total) })
	}
}

func cancelledResult(c template.CompiledCase) CaseResult {
	return CaseResult{Case: c.Case, Dir: c.Dir, Status: calculator.StatusError, Error: "cancelled"}
}

// runCase walks the retry loop: each attempt tries every cache:// backend
// first (in declared order), then the remaining backends round-robin
// starting at workerOffset, waiting a bounded jittered backoff between
// attempts.
func (d *Dispatcher) runCase(ctx context.Context, cc template.CompiledCase, workerOffset int) CaseResult {
	start := time.Now()
	var lastErrs []string
	var lastURI, lastCommand string

	for attempt := 1; attempt <= d.cfg.MaxRetries; attempt++ {
		if d.cancelled() {
			return cancelledResult(cc)
		}

		for _, uri := range d.orderedURIs(workerOffset) {
			if d.cancelled() {
				return cancelledResult(cc)
			}
			parsed, err := calculator.ParseURI(uri)
			if err != nil {
				lastErrs = append(lastErrs, err.Error())
				continue
			}
			backend := d.backends[parsed.Scheme]
			res := backend.Execute(ctx, cc.Dir, uri)
			lastURI, lastCommand = uri, res.CommandRan

			switch res.Status {
			case calculator.StatusCached, calculator.StatusDone:
				outputs := extract.Extract(cc.Dir, d.cfg.Model, d.cfg.Resolver)
				if anyNull(outputs) {
					lastErrs = append(lastErrs, "extracted output was null, treating as miss")
					continue
				}
				values := outcomesToValues(outputs)
				return CaseResult{
					Case: cc.Case, Dir: cc.Dir, Status: res.Status, Outputs: values,
					Calculator: uri, Command: res.CommandRan, DurationS: time.Since(start).Seconds(),
				}
			default:
				if res.Err != nil {
					lastErrs = append(lastErrs, res.Err.Error())
				} else {
					lastErrs = append(lastErrs, "calculator failed")
				}
			}
		}

		if attempt < d.cfg.MaxRetries {
			waitBackoff(ctx, attempt, d.cfg.Cancel)
		}
	}

	return CaseResult{
		Case: cc.Case, Dir: cc.Dir, Status: calculator.StatusFailed,
		Calculator: lastURI, Command: lastCommand, Error: strings.Join(lastErrs, "; "),
		DurationS: time.Since(start).Seconds(),
	}
}

// orderedURIs returns cache:// URIs first in declared order, followed by
// the remaining calculators round-robin starting at offset, spreading
// load across workers that would otherwise all start at the same entry.
func (d *Dispatcher) orderedURIs(offset int) []string {
	out := append([]string{}, d.cacheURIs...)
	n := len(d.otherURIs)
	if n == 0 {
		return out
	}
	offset = offset % n
	for i := 0; i < n; i++ {
		out = append(out, d.otherURIs[(offset+i)%n])
	}
	return out
}

func (d *Dispatcher) cancelled() bool {
	return d.cfg.Cancel != nil && d.cfg.Cancel.IsStopped()
}

// waitBackoff sleeps a bounded, jittered interval before the next retry
// attempt, using a rate.Limiter's reservation delay as the backoff clock
// so the jitter is bounded by the same token-bucket primitive the rest of
// the module already depends on. It returns early if ctx or the
// cancellation controller fires.
func waitBackoff(ctx context.Context, attempt int, ctrl *cancel.Controller) {
	base := time.Duration(1<<uint(min(attempt, 6))) * 100 * time.Millisecond
	jitter := time.Duration(rand.Int63n(int64(base)))
	limiter := rate.NewLimiter(rate.Every(base+jitter), 1)
	limiter.Reserve() // consume the initial burst token
	delay := limiter.Reserve().Delay()

	var stopCh <-chan struct{}
	if ctrl != nil {
		stopCh = ctrl.StopChannel()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-stopCh:
	case <-timer.C:
	}
}

func anyNull(outputs map[string]extract.Outcome) bool {
	for _, o := range outputs {
		if o.Value == nil {
			return true
		}
	}
	return false
}

func outcomesToValues(outputs map[string]extract.Outcome) map[string]any {
	out := make(map[string]any, len(outputs))
	for name, o := range outputs {
		out[name] = o.Value
	}
	return out
}

func safeCallback(logger *logging.Logger, cb func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("dispatcher callback panicked", "panic", r)
		}
	}()
	cb()
}
