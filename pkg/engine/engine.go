// Package engine provides the high-level, embedded interface for chronograph.
//
// It owns the live temporal network, the views polling it and the players
// animating those views, and ties them to configuration, logging and
// metrics. Everything is in memory; there is nothing to persist.
//
// Basic usage:
//
//	e, err := engine.Open(engine.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Close()
//
//	if err := e.Load(ctx, file); err != nil {
//	    log.Fatal(err)
//	}
//	view, _ := e.NewView()
//	frame, _ := view.Poll(ctx, interval.Point(12))
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/sanonone/chronograph/pkg/core"
	"github.com/sanonone/chronograph/pkg/core/store"
	"github.com/sanonone/chronograph/pkg/loader"
	"github.com/sanonone/chronograph/pkg/metrics"
)

var (
	// ErrClosed is returned by operations on a closed Engine.
	ErrClosed = errors.New("engine closed")
	// ErrEmptyNetwork is returned when playback is requested on a network
	// without any finite time span.
	ErrEmptyNetwork = errors.New("network has no finite time span")
	// ErrUnknownView is returned for a view ID the engine does not own.
	ErrUnknownView = errors.New("unknown view")
)

// Engine is the main entry point for chronograph.
//
// Use Open() to initialize an Engine and Close() to shut it down gracefully.
type Engine struct {
	opts Options
	log  *slog.Logger

	mu      sync.RWMutex
	net     *core.Network
	views   map[uuid.UUID]*View
	players map[*Player]struct{}

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open initializes a new Engine with an empty network.
func Open(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if opts.ReservedColumns == nil {
		opts.ReservedColumns = store.DefaultReserved
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	e := &Engine{
		opts:    opts,
		log:     log,
		views:   make(map[uuid.UUID]*View),
		players: make(map[*Player]struct{}),
		closed:  make(chan struct{}),
	}
	e.net = e.newNetwork()
	return e, nil
}

// Close stops every player and waits for them to exit. It is safe to call
// more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		close(e.closed)
		e.mu.Unlock()
		e.wg.Wait()

		e.mu.Lock()
		e.views = make(map[uuid.UUID]*View)
		e.players = make(map[*Player]struct{})
		e.mu.Unlock()
	})
	return nil
}

func (e *Engine) isClosed() bool {
	select {
	case <-e.closed:
		return true
	default:
		return false
	}
}

// Options returns the configuration the engine was opened with.
func (e *Engine) Options() Options { return e.opts }

func (e *Engine) newNetwork() *core.Network {
	return core.NewNetwork(core.WithReservedColumns(e.opts.ReservedColumns...))
}

// Network returns the live network.
func (e *Engine) Network() *core.Network {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.net
}

// Load reads an event stream into a new network and, on success, replaces
// the live one with it. On failure the live network is left untouched.
func (e *Engine) Load(ctx context.Context, r io.Reader) error {
	if e.isClosed() {
		return ErrClosed
	}
	l := loader.New(loader.WithNetwork(e.newNetwork), loader.WithLogger(e.log))
	net, _, err := l.Load(ctx, r)
	if err != nil {
		e.countValidation(err)
		return fmt.Errorf("failed to load network: %w", err)
	}
	e.Swap(net)
	return nil
}

// Swap replaces the live network. Every view is rebound to the new network
// and reports its whole content as added on its next poll.
func (e *Engine) Swap(net *core.Network) {
	e.mu.Lock()
	e.net = net
	views := make([]*View, 0, len(e.views))
	for _, v := range e.views {
		views = append(views, v)
	}
	e.mu.Unlock()

	for _, v := range views {
		v.bind(net)
	}
	e.refreshGauges(net)
	e.log.Info("Network swapped", "views", len(views))
}

// Update runs fn against the live network, counting rejected insertions.
// It is the entry point for incremental edits such as layout updates.
func (e *Engine) Update(fn func(net *core.Network) error) error {
	if e.isClosed() {
		return ErrClosed
	}
	net := e.Network()
	err := fn(net)
	e.countValidation(err)
	e.refreshGauges(net)
	return err
}

// RemoveNode drops node row and its incident edges from the live network.
func (e *Engine) RemoveNode(row uint64) int {
	net := e.Network()
	n := net.RemoveNode(row)
	e.refreshGauges(net)
	e.log.Debug("Node removed", "row", row, "intervals", n)
	return n
}

// NewView creates a view over the live network.
func (e *Engine) NewView() (*View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isClosed() {
		return nil, ErrClosed
	}
	v := newView(e.net)
	e.views[v.ID] = v
	return v, nil
}

// View returns the view with the given ID.
func (e *Engine) View(id uuid.UUID) (*View, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.views[id]
	return v, ok
}

// CloseView forgets a view. Its players keep running until stopped.
func (e *Engine) CloseView(id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.views[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownView, id)
	}
	delete(e.views, id)
	return nil
}

// Playing returns the number of running players.
func (e *Engine) Playing() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.players)
}

func (e *Engine) countValidation(err error) {
	var verr *store.ValidationError
	if errors.As(err, &verr) {
		metrics.ValidationErrorsTotal.Inc()
	}
}

func (e *Engine) refreshGauges(net *core.Network) {
	for kind, n := range net.Counts() {
		metrics.Intervals.WithLabelValues(kind.String()).Set(float64(n))
	}
}
