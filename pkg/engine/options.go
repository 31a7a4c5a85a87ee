package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sanonone/chronograph/pkg/core/store"
)

// Duration is a wrapper around time.Duration that supports YAML string
// parsing (e.g. "250ms", "1s"). Plain integers are read as nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid duration at line %d", value.Line)
	}
	if value.Tag == "!!int" {
		n, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return err
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	tmp, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(tmp)
	return nil
}

// MarshalYAML serializes the duration back to a readable string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Options configures an Engine and the players it starts.
type Options struct {
	// TimeResolution is the number of steps the network's time span is
	// divided into for playback. A player emits TimeResolution+1 frames.
	TimeResolution int `yaml:"time_resolution"`

	// Smoothness is the delay between two frames. Zero plays as fast as the
	// sink accepts frames.
	Smoothness Duration `yaml:"smoothness"`

	// Loop restarts playback from the first step after the last one.
	Loop bool `yaml:"loop"`

	// ReservedColumns are the attribute names rejected by checked
	// insertion. Nil selects store.DefaultReserved.
	ReservedColumns []string `yaml:"reserved_columns"`

	// MetricsAddr is the listen address of the Prometheus endpoint exposed
	// by the command line tool. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	// Logger receives engine events. Nil selects slog.Default().
	Logger *slog.Logger `yaml:"-"`
}

// DefaultOptions returns a configuration suitable for interactive playback.
//
// Defaults:
//   - TimeResolution: 100 steps
//   - Smoothness: 100ms between frames
//   - Loop: off
//   - ReservedColumns: "name", "interaction"
func DefaultOptions() Options {
	return Options{
		TimeResolution:  100,
		Smoothness:      Duration(100 * time.Millisecond),
		ReservedColumns: slices.Clone(store.DefaultReserved),
	}
}

// Validate reports every invalid field.
func (o Options) Validate() error {
	var errs []error
	if o.TimeResolution <= 0 {
		errs = append(errs, fmt.Errorf("time_resolution must be positive, got %d", o.TimeResolution))
	}
	if o.Smoothness < 0 {
		errs = append(errs, fmt.Errorf("smoothness must not be negative, got %s", time.Duration(o.Smoothness)))
	}
	return errors.Join(errs...)
}

// LoadOptions reads a YAML configuration file on top of DefaultOptions.
// Environment variables are expanded before parsing and unknown fields are
// rejected to catch typos.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	if path == "" {
		return opts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("could not read configuration file '%s': %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)

	if err := decoder.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return opts, fmt.Errorf("YAML syntax error in '%s': %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("invalid configuration in '%s': %w", path, err)
	}
	return opts, nil
}
