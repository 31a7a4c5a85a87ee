package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sanonone/chronograph/pkg/core"
	"github.com/sanonone/chronograph/pkg/core/interval"
	"github.com/sanonone/chronograph/pkg/core/tracker"
	"github.com/sanonone/chronograph/pkg/engine"
	"github.com/sanonone/chronograph/pkg/loader"
)

// openAndLoad opens an engine with opts and loads the event stream at path.
func openAndLoad(ctx context.Context, opts engine.Options, path string) (*engine.Engine, error) {
	eng, err := engine.Open(opts)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		eng.Close()
		return nil, fmt.Errorf("could not open event stream: %w", err)
	}
	defer f.Close()
	if err := eng.Load(ctx, f); err != nil {
		eng.Close()
		return nil, err
	}
	return eng, nil
}

func newPlayCmd(root *rootFlags) *cobra.Command {
	var (
		steps  int
		smooth time.Duration
		loop   bool
	)
	cmd := &cobra.Command{
		Use:   "play FILE",
		Short: "Play the network back and print every frame",
		Long: `Play divides the time span of the network into equal steps and prints,
for each step, the intervals that became active (+) or inactive (-).

Playback stops at the last step unless --loop is set, or on Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := root.options(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("steps") {
				opts.TimeResolution = steps
			}
			if cmd.Flags().Changed("smooth") {
				opts.Smoothness = engine.Duration(smooth)
			}
			if cmd.Flags().Changed("loop") {
				opts.Loop = loop
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, err := openAndLoad(ctx, opts, args[0])
			if err != nil {
				return err
			}
			defer eng.Close()

			if opts.MetricsAddr != "" {
				srv := serveMetrics(opts)
				defer srv.Shutdown(context.Background())
			}

			view, err := eng.NewView()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			p, err := eng.Play(ctx, view, engine.SinkFunc(func(ctx context.Context, f engine.Frame) error {
				return printFrame(out, f)
			}))
			if err != nil {
				return err
			}
			if err := p.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps across the time span (overrides time_resolution)")
	cmd.Flags().DurationVar(&smooth, "smooth", 0, "delay between frames (overrides smoothness)")
	cmd.Flags().BoolVar(&loop, "loop", false, "restart from the first step after the last")
	return cmd
}

func serveMetrics(opts engine.Options) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: opts.MetricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			opts.Logger.Error("Metrics server failed", "addr", opts.MetricsAddr, "error", err)
		}
	}()
	opts.Logger.Info("Serving metrics", "addr", opts.MetricsAddr)
	return srv
}

func printFrame(w io.Writer, f engine.Frame) error {
	if _, err := fmt.Fprintf(w, "step %d: %d changes\n", f.Step, f.Len()); err != nil {
		return err
	}
	return printDeltas(w, f)
}

func printDeltas(w io.Writer, f engine.Frame) error {
	return errors.Join(
		printDelta(w, core.Nodes, f.Nodes),
		printDelta(w, core.Edges, f.Edges),
		printDelta(w, core.Graph, f.Graph),
		printDelta(w, core.NodeAttrs, f.NodeAttrs),
		printDelta(w, core.EdgeAttrs, f.EdgeAttrs),
		printDelta(w, core.GraphAttrs, f.GraphAttrs),
		printDelta(w, core.NodeX, f.NodeX),
		printDelta(w, core.NodeY, f.NodeY),
	)
}

func printDelta[T any](w io.Writer, kind core.StreamKind, d tracker.Delta[T]) error {
	for _, iv := range d.Removed {
		if _, err := fmt.Fprintf(w, "  - %-11s %-16s %v\n", kind, keyOf(iv), iv); err != nil {
			return err
		}
	}
	for _, iv := range d.Added {
		if _, err := fmt.Fprintf(w, "  + %-11s %-16s %v\n", kind, keyOf(iv), iv); err != nil {
			return err
		}
	}
	return nil
}

// keyOf renders the row/column an interval was recorded under.
func keyOf[T any](iv *interval.Interval[T]) string {
	if key, ok := iv.Key(); ok {
		return key.String()
	}
	return "-"
}

func newQueryCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "query FILE TIME [END]",
		Short: "Print the intervals active at an instant or over a range",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseQuery(args[1:])
			if err != nil {
				return err
			}
			opts, err := root.options(cmd)
			if err != nil {
				return err
			}
			eng, err := openAndLoad(cmd.Context(), opts, args[0])
			if err != nil {
				return err
			}
			defer eng.Close()

			view, err := eng.NewView()
			if err != nil {
				return err
			}
			f, err := view.Poll(cmd.Context(), q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d active\n", q, f.Len())
			return printDeltas(out, f)
		},
	}
}

func parseQuery(args []string) (interval.Bounds, error) {
	start, err := loader.ParseBound(args[0], -1)
	if err != nil {
		return interval.Bounds{}, err
	}
	end := start
	if len(args) > 1 {
		if end, err = loader.ParseBound(args[1], 1); err != nil {
			return interval.Bounds{}, err
		}
	}
	q := interval.Bounds{Start: start, End: end}
	if !q.Valid() {
		return q, fmt.Errorf("query end %v precedes start %v", end, start)
	}
	return q, nil
}

func newSpanCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "span FILE",
		Short: "Print the time span and interval counts of a network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := root.options(cmd)
			if err != nil {
				return err
			}
			eng, err := openAndLoad(cmd.Context(), opts, args[0])
			if err != nil {
				return err
			}
			defer eng.Close()

			net := eng.Network()
			out := cmd.OutOrStdout()
			span, ok := net.Span()
			if !ok {
				fmt.Fprintln(out, "span: empty")
			} else {
				fmt.Fprintf(out, "span: %s\n", span)
			}
			counts := net.Counts()
			for _, kind := range core.StreamKinds {
				fmt.Fprintf(out, "%-11s %d\n", kind, counts[kind])
			}
			return nil
		},
	}
}
