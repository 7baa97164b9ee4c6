// Package fuzzer runs attack strategies against one baseline request.
package fuzzer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxfuzzer/bypassfuzzer/internal/analyzer"
	"github.com/fluxfuzzer/bypassfuzzer/internal/attack"
	"github.com/fluxfuzzer/bypassfuzzer/internal/logging"
	"github.com/fluxfuzzer/bypassfuzzer/internal/payload"
	"github.com/fluxfuzzer/bypassfuzzer/internal/ratelimit"
	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

var (
	// ErrAlreadyRunning is returned by Start while a run is active.
	ErrAlreadyRunning = errors.New("a run is already in progress")
	// ErrUnresolvableTarget means no absolute URL could be built for the baseline.
	ErrUnresolvableTarget = errors.New("cannot resolve target URL")
	// ErrNoStrategies means nothing was enabled.
	ErrNoStrategies = errors.New("no attack strategies enabled")
)

// Sink receives results in the order attempts complete.
type Sink interface {
	Accept(r *types.AttackResult)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r *types.AttackResult)

func (f SinkFunc) Accept(r *types.AttackResult) { f(r) }

// Options configures an Orchestrator.
type Options struct {
	StartGrace     time.Duration // wait for a finishing run before interrupting it
	InterruptGrace time.Duration // wait after interrupting before starting anyway
	CleanupWait    time.Duration // wait for the worker on Cleanup

	Limiter  *ratelimit.Limiter    // nil = unpaced
	Smart    *analyzer.SmartFilter // nil = a default filter
	Log      *logging.Logger
	Payloads payload.Source // nil = built-in lists
	OOB      payload.OOBProvider
	Rand     *rand.Rand // nil = randomly seeded
}

// DefaultOptions returns the standard grace periods.
func DefaultOptions() *Options {
	return &Options{
		StartGrace:     5 * time.Second,
		InterruptGrace: 2 * time.Second,
		CleanupWait:    2 * time.Second,
	}
}

// Orchestrator owns the run lifecycle. At most one worker executes
// strategies at a time; strategies and attempts never run concurrently.
type Orchestrator struct {
	sender attack.Sender
	opts   Options
	log    *logging.Logger
	smart  *analyzer.SmartFilter

	startMu sync.Mutex // serializes Start

	state atomic.Int32  // types.RunState
	gen   atomic.Uint64 // current run generation

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{} // closed when the current worker exits

	// Stats
	emitted      atomic.Int64
	runs         atomic.Int64
	panicked     atomic.Int64
	sinkFailures atomic.Int64
}

// New creates an orchestrator sending through sender.
func New(sender attack.Sender, opts *Options) *Orchestrator {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := &Orchestrator{
		sender: sender,
		opts:   *opts,
		log:    opts.Log,
		smart:  opts.Smart,
	}
	if o.log == nil {
		o.log = logging.Nop()
	}
	if o.smart == nil {
		o.smart = analyzer.NewSmartFilter(analyzer.DefaultMaxRepeats)
	}
	if o.opts.Payloads == nil {
		o.opts.Payloads = payload.Defaults()
	}
	if o.opts.Rand == nil {
		o.opts.Rand = payload.NewRand()
	}
	return o
}

// Start launches a run of strategies against baseline and returns once the
// worker is running. It fails with ErrAlreadyRunning while a run is active.
// A run that is still stopping gets StartGrace to finish, is then
// interrupted, and after InterruptGrace the new run starts regardless.
func (o *Orchestrator) Start(baseline *types.Request, strategies []attack.Strategy, sink Sink) error {
	o.startMu.Lock()
	defer o.startMu.Unlock()

	if o.State() == types.Running {
		o.log.Warn("start ignored, a run is already in progress")
		return ErrAlreadyRunning
	}
	if len(strategies) == 0 {
		return ErrNoStrategies
	}
	base, err := ResolveBaseline(baseline)
	if err != nil {
		o.log.Error("cannot start run", err)
		return err
	}

	o.awaitPrevious()
	if prev, _ := o.current(); prev != nil {
		prev()
	}

	ordered := orderStrategies(strategies)
	// per-run source, an interrupted worker may still hold the old one
	rng := rand.New(rand.NewPCG(o.opts.Rand.Uint64(), o.opts.Rand.Uint64()))
	gen := o.gen.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.mu.Lock()
	o.cancel, o.done = cancel, done
	o.mu.Unlock()
	o.state.Store(int32(types.Running))
	o.runs.Add(1)

	o.log.Info("run started", "target", base.URL, "strategies", len(ordered))
	go o.work(ctx, gen, base, ordered, sink, rng, done)
	return nil
}

// awaitPrevious waits for a stopping worker. Callers hold startMu.
func (o *Orchestrator) awaitPrevious() {
	cancel, done := o.current()
	if done == nil {
		return
	}
	select {
	case <-done:
		return
	case <-time.After(o.opts.StartGrace):
	}

	o.log.Warn("previous run still finishing, interrupting it")
	cancel()
	select {
	case <-done:
	case <-time.After(o.opts.InterruptGrace):
		o.log.Warn("previous run did not stop, starting anyway")
	}
}

func (o *Orchestrator) work(ctx context.Context, gen uint64, base *types.Request, strategies []attack.Strategy, sink Sink, rng *rand.Rand, done chan struct{}) {
	defer close(done)
	defer func() {
		// a newer run owns the state once the generation moved on
		if o.gen.Load() == gen {
			o.state.Store(int32(types.Completed))
		}
	}()

	shouldContinue := func() bool {
		return ctx.Err() == nil && o.gen.Load() == gen && o.State() == types.Running
	}

	env := &attack.Env{
		Sender:   o.sender,
		Baseline: base,
		Emit: func(r *types.AttackResult) {
			o.emit(gen, r, sink)
		},
		ShouldContinue: shouldContinue,
		Log:            o.log,
		Payloads:       o.opts.Payloads,
		OOB:            o.opts.OOB,
		Rand:           rng,
	}
	if o.opts.Limiter != nil {
		env.Pacer = o.opts.Limiter
	}

	for i, s := range strategies {
		if !shouldContinue() {
			o.log.Info("run stopped", "completed_strategies", i, "total_strategies", len(strategies))
			return
		}
		o.execute(ctx, s, env)
		if env.Lost() {
			o.log.Withdraw()
			return
		}
	}
	o.log.Info("run completed", "results", o.emitted.Load())
}

// execute runs one strategy, containing any panic it raises.
func (o *Orchestrator) execute(ctx context.Context, s attack.Strategy, env *attack.Env) {
	defer func() {
		if r := recover(); r != nil {
			o.panicked.Add(1)
			o.log.Error("strategy failed", fmt.Errorf("panic: %v", r), "attack", s.Tag())
		}
	}()
	s.Execute(ctx, env)
}

func (o *Orchestrator) emit(gen uint64, r *types.AttackResult, sink Sink) {
	if o.gen.Load() != gen {
		return
	}
	if o.opts.Limiter != nil {
		o.opts.Limiter.ReportResponse(r.StatusCode)
	}
	o.smart.Track(r)
	o.emitted.Add(1)
	if sink != nil {
		o.deliver(sink, r)
	}
}

// deliver hands r to sink. A panicking sink loses that result only.
func (o *Orchestrator) deliver(sink Sink, r *types.AttackResult) {
	defer func() {
		if p := recover(); p != nil {
			o.sinkFailures.Add(1)
			o.log.Error("sink failed", fmt.Errorf("panic: %v", p), "id", r.ID, "attack", r.AttackType)
		}
	}()
	sink.Accept(r)
}

// Stop asks the current run to end after the attempt in flight.
func (o *Orchestrator) Stop() {
	if o.state.CompareAndSwap(int32(types.Running), int32(types.Stopping)) {
		o.log.Info("stop requested")
	}
	if cancel, _ := o.current(); cancel != nil {
		cancel()
	}
}

func (o *Orchestrator) current() (context.CancelFunc, chan struct{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancel, o.done
}

// Cleanup stops the run, waits up to CleanupWait for the worker and
// withdraws logging.
func (o *Orchestrator) Cleanup() {
	o.Stop()
	if _, done := o.current(); done != nil {
		select {
		case <-done:
		case <-time.After(o.opts.CleanupWait):
			o.log.Warn("worker still running at cleanup")
		}
	}
	o.log.Withdraw()
}

// Wait blocks until the current run finishes or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	_, done := o.current()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether a run is active.
func (o *Orchestrator) IsRunning() bool {
	return o.State() == types.Running
}

// State returns the lifecycle state.
func (o *Orchestrator) State() types.RunState {
	return types.RunState(o.state.Load())
}

// SmartFilter returns the filter tracking this orchestrator's results.
func (o *Orchestrator) SmartFilter() *analyzer.SmartFilter {
	return o.smart
}

// ClearResults forgets every tracked pattern.
func (o *Orchestrator) ClearResults() {
	o.smart.Reset()
}

// Stats holds orchestrator counters.
type Stats struct {
	Runs         int64
	Results      int64
	Panicked     int64
	SinkFailures int64
	State        types.RunState
}

// Stats returns current counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Runs:         o.runs.Load(),
		Results:      o.emitted.Load(),
		Panicked:     o.panicked.Load(),
		SinkFailures: o.sinkFailures.Load(),
		State:        o.State(),
	}
}

// ResolveBaseline returns baseline with an absolute URL. An origin-form URL
// is completed from the Host header, using https when the request is marked
// secure or the host names port 443.
func ResolveBaseline(baseline *types.Request) (*types.Request, error) {
	if baseline == nil {
		return nil, fmt.Errorf("%w: no request", ErrUnresolvableTarget)
	}
	if strings.Contains(baseline.URL, "://") {
		switch baseline.Scheme() {
		case "http", "https":
		default:
			return nil, fmt.Errorf("%w: unsupported scheme in %q", ErrUnresolvableTarget, baseline.URL)
		}
		if baseline.Host() == "" {
			return nil, fmt.Errorf("%w: no host in %q", ErrUnresolvableTarget, baseline.URL)
		}
		return baseline.Clone(), nil
	}

	host := baseline.Host()
	if host == "" {
		return nil, fmt.Errorf("%w: %q has no Host header", ErrUnresolvableTarget, baseline.URL)
	}
	scheme := "http"
	if baseline.Secure || strings.HasSuffix(host, ":443") {
		scheme = "https"
	}
	target := baseline.URL
	if target == "" {
		target = "/"
	}
	if target[0] != '/' && target[0] != '*' {
		return nil, fmt.Errorf("%w: %q is not a path", ErrUnresolvableTarget, baseline.URL)
	}
	return baseline.WithURL(scheme + "://" + host + target), nil
}

// orderStrategies sorts by canonical tag order. Unknown tags keep their
// relative order at the end.
func orderStrategies(in []attack.Strategy) []attack.Strategy {
	tags := attack.Tags()
	rank := func(s attack.Strategy) int {
		if i := slices.Index(tags, s.Tag()); i >= 0 {
			return i
		}
		return len(tags)
	}
	out := slices.Clone(in)
	slices.SortStableFunc(out, func(a, b attack.Strategy) int {
		return rank(a) - rank(b)
	})
	return out
}
