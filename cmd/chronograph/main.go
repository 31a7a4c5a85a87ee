// Command chronograph loads a temporal network event stream and plays it
// back, queries it at a point in time or summarizes it.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sanonone/chronograph/pkg/engine"
)

type rootFlags struct {
	config    string
	logLevel  string
	logFormat string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "chronograph",
		Short: "Index and play back dynamic graphs",
		Long: `chronograph indexes the time intervals of a dynamic graph and reports,
for any instant, which nodes, edges, attributes and positions become active
or inactive.

Event streams are line oriented:
  GRAPH start end
  NODE row start end
  EDGE row source target start end
  NATTR|EATTR row column type value start end
  GATTR column type value start end
  POS row x y start end

Examples:
  chronograph span network.evt
  chronograph query network.evt 12.5
  chronograph play network.evt --steps 200 --smooth 50ms`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(newPlayCmd(flags), newQueryCmd(flags), newSpanCmd(flags))
	return root
}

// options loads the configuration file and attaches a logger writing to
// the command's error stream.
func (f *rootFlags) options(cmd *cobra.Command) (engine.Options, error) {
	opts, err := engine.LoadOptions(f.config)
	if err != nil {
		return opts, err
	}
	log, err := newLogger(cmd, f.logLevel, f.logFormat)
	if err != nil {
		return opts, err
	}
	opts.Logger = log
	return opts, nil
}

func newLogger(cmd *cobra.Command, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
