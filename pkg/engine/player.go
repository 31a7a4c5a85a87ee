package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sanonone/chronograph/pkg/core/interval"
	"github.com/sanonone/chronograph/pkg/metrics"
)

// Sink consumes the frames produced by a Player. Returning an error stops
// playback.
type Sink interface {
	Apply(ctx context.Context, f Frame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, f Frame) error

// Apply calls fn.
func (fn SinkFunc) Apply(ctx context.Context, f Frame) error { return fn(ctx, f) }

// Grid divides b into steps equal parts and returns the steps+1 instants
// delimiting them. A degenerate span yields a single instant.
func Grid(b interval.Bounds, steps int) []float64 {
	if steps <= 0 || b.IsPoint() {
		return []float64{b.Start}
	}
	out := make([]float64, steps+1)
	width := (b.End - b.Start) / float64(steps)
	for i := range out {
		out[i] = b.Start + float64(i)*width
	}
	out[steps] = b.End
	return out
}

// Player animates a view: it polls the view once per grid instant and hands
// every frame to its sink, waiting Smoothness between frames.
//
// Cancellation is cooperative. The context, Stop and Engine.Close are
// checked before every poll and while waiting; a poll already in flight
// completes and its frame is still delivered.
type Player struct {
	engine *Engine
	view   *View
	sink   Sink
	grid   []float64
	smooth time.Duration
	loop   bool

	pos      atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu  sync.Mutex
	err error
}

// Play starts animating v over the time span of the live network.
func (e *Engine) Play(ctx context.Context, v *View, sink Sink) (*Player, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}
	span, ok := e.Network().Span()
	if !ok {
		return nil, ErrEmptyNetwork
	}

	p := &Player{
		engine: e,
		view:   v,
		sink:   sink,
		grid:   Grid(span, e.opts.TimeResolution),
		smooth: time.Duration(e.opts.Smoothness),
		loop:   e.opts.Loop,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	if e.isClosed() {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	e.players[p] = struct{}{}
	e.wg.Add(1)
	e.mu.Unlock()

	e.log.Info("Player started", "view", v.ID, "frames", len(p.grid), "span", span.String())
	go p.run(ctx)
	return p, nil
}

func (p *Player) run(ctx context.Context) {
	defer p.engine.wg.Done()
	defer close(p.done)
	defer func() {
		p.engine.mu.Lock()
		delete(p.engine.players, p)
		p.engine.mu.Unlock()
		p.engine.log.Info("Player stopped", "view", p.view.ID, "position", p.Position())
	}()

	for {
		if p.cancelled(ctx) {
			p.setErr(ctx.Err())
			return
		}

		step := int(p.pos.Load())
		if step >= len(p.grid) {
			if !p.loop {
				return
			}
			step = 0
			p.pos.Store(0)
		}

		f, err := p.view.Poll(ctx, interval.Point(p.grid[step]))
		if err != nil {
			p.setErr(err)
			return
		}
		f.Step = step
		if err := p.sink.Apply(ctx, f); err != nil {
			p.engine.log.Error("Playback sink failed", "view", p.view.ID, "step", step, "error", err)
			p.setErr(err)
			return
		}
		metrics.FramesTotal.Inc()

		// A concurrent Seek wins over the automatic advance.
		p.pos.CompareAndSwap(int64(step), int64(step+1))

		if !p.wait(ctx) {
			p.setErr(ctx.Err())
			return
		}
	}
}

func (p *Player) cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-p.stop:
		return true
	case <-p.engine.closed:
		return true
	default:
		return false
	}
}

// wait sleeps for the frame delay and reports false if playback was
// cancelled meanwhile.
func (p *Player) wait(ctx context.Context) bool {
	if p.smooth <= 0 {
		return !p.cancelled(ctx)
	}
	timer := time.NewTimer(p.smooth)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-p.stop:
		return false
	case <-p.engine.closed:
		return false
	case <-timer.C:
		return true
	}
}

func (p *Player) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

// Stop asks the player to exit before its next poll.
func (p *Player) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// Done is closed once the player has exited.
func (p *Player) Done() <-chan struct{} { return p.done }

// Wait blocks until the player exits and returns what ended it: nil when it
// ran to the end or was stopped, the context error on cancellation, or the
// error of the poll or sink that failed.
func (p *Player) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Position returns the index of the next step to play.
func (p *Player) Position() int { return int(p.pos.Load()) }

// Steps returns the instants the player visits, in order.
func (p *Player) Steps() []float64 { return append([]float64(nil), p.grid...) }

// Seek moves playback to step, clamped to the grid.
func (p *Player) Seek(step int) {
	p.pos.Store(int64(max(0, min(step, len(p.grid)-1))))
}

// SeekTime moves playback to the last step at or before t.
func (p *Player) SeekTime(t float64) {
	step := 0
	for i, at := range p.grid {
		if at > t {
			break
		}
		step = i
	}
	p.Seek(step)
}
