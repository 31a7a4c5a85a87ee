package loader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sanonone/chronograph/internal/protocol"
	"github.com/sanonone/chronograph/pkg/core"
)

// maxLineSize bounds a single event line.
const maxLineSize = 1 << 20

// LineError locates a failed event in the input.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *LineError) Unwrap() error { return e.Err }

// Stats summarizes one load.
type Stats struct {
	Lines    int
	Events   int
	PerKind  map[Kind]int
	Indexed  int
	Duration time.Duration
}

// Option configures a Loader.
type Option func(*Loader)

// WithNetwork sets the constructor of the network events are loaded into.
func WithNetwork(fn func() *core.Network) Option {
	return func(l *Loader) { l.newNetwork = fn }
}

// WithLogger sets the logger used for load summaries.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// Loader reads event streams into networks.
type Loader struct {
	newNetwork func() *core.Network
	log        *slog.Logger
}

// New creates a Loader. Without options it builds networks with
// core.NewNetwork() and logs to slog.Default().
func New(opts ...Option) *Loader {
	l := &Loader{
		newNetwork: func() *core.Network { return core.NewNetwork() },
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads r to the end into a new network, finalizes it and returns it.
//
// The first failing line aborts the import: its error is returned wrapped in
// a *LineError and the partially built network is discarded, so a caller
// swapping networks never exposes half an import. Cancelling ctx aborts
// between two lines.
func (l *Loader) Load(ctx context.Context, r io.Reader) (*core.Network, Stats, error) {
	start := time.Now()
	net := l.newNetwork()
	stats := Stats{PerKind: make(map[Kind]int)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		stats.Lines++

		cmd, err := protocol.Parse(scanner.Text())
		if errors.Is(err, protocol.ErrEmpty) {
			continue
		}
		if err != nil {
			return nil, stats, &LineError{Line: stats.Lines, Err: err}
		}
		ev, err := ParseEvent(cmd)
		if err != nil {
			return nil, stats, &LineError{Line: stats.Lines, Err: err}
		}
		if err := Apply(net, ev); err != nil {
			return nil, stats, &LineError{Line: stats.Lines, Err: err}
		}
		stats.Events++
		stats.PerKind[ev.Kind]++
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("failed to read event stream: %w", err)
	}

	stats.Indexed = net.Finalize()
	stats.Duration = time.Since(start)
	l.log.Info("Event stream loaded",
		"lines", stats.Lines,
		"events", stats.Events,
		"indexed", stats.Indexed,
		"duration", stats.Duration)
	return net, stats, nil
}

// Apply records one event in net. Existence and position events take the
// fast path and become searchable on Finalize; attribute events are
// validated and indexed immediately.
func Apply(net *core.Network, ev Event) error {
	var err error
	switch ev.Kind {
	case KindGraph:
		err = net.AddGraph(ev.Start, ev.End)
	case KindNode:
		err = net.AddNode(ev.Row, ev.Start, ev.End)
	case KindEdge:
		err = net.AddEdge(ev.Row, ev.Source, ev.Target, ev.Start, ev.End)
	case KindGraphAttr:
		_, err = net.SetGraphAttr(ev.Column, ev.Type, ev.Value, ev.Start, ev.End)
	case KindNodeAttr:
		_, err = net.SetNodeAttr(ev.Row, ev.Column, ev.Type, ev.Value, ev.Start, ev.End)
	case KindEdgeAttr:
		_, err = net.SetEdgeAttr(ev.Row, ev.Column, ev.Type, ev.Value, ev.Start, ev.End)
	case KindPosition:
		err = net.AddPosition(ev.Row, ev.X, ev.Y, ev.Start, ev.End)
	default:
		err = fmt.Errorf("%w %v", ErrUnknownEvent, ev.Kind)
	}
	return err
}
