// Package loader is the ingestion boundary of the temporal index.
//
// It reads a line-oriented event stream, one event per line:
//
//	GRAPH <start> <end>
//	NODE  <row> <start> <end>
//	EDGE  <row> <source> <target> <start> <end>
//	GATTR <column> <type> <value> <start> <end>
//	NATTR <row> <column> <type> <value> <start> <end>
//	EATTR <row> <column> <type> <value> <start> <end>
//	POS   <row> <x> <y> <start> <end>
//
// and applies the events to a fresh core.Network. Bounds that are empty,
// "null", "-" or "inf" are unbounded. '#' starts a comment and arguments
// containing spaces can be double-quoted.
package loader

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sanonone/chronograph/internal/protocol"
	"github.com/sanonone/chronograph/pkg/core/types"
)

var (
	// ErrUnknownEvent is returned for an unrecognized event keyword.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrArity is returned when an event has the wrong number of arguments.
	ErrArity = errors.New("wrong number of arguments")
	// ErrSyntax is returned for a malformed number or bound.
	ErrSyntax = errors.New("syntax error")
)

// Kind identifies an ingestion event.
type Kind int

const (
	KindGraph Kind = iota
	KindNode
	KindEdge
	KindGraphAttr
	KindNodeAttr
	KindEdgeAttr
	KindPosition
)

var kindNames = map[string]Kind{
	"GRAPH": KindGraph,
	"NODE":  KindNode,
	"EDGE":  KindEdge,
	"GATTR": KindGraphAttr,
	"NATTR": KindNodeAttr,
	"EATTR": KindEdgeAttr,
	"POS":   KindPosition,
}

// arity is the expected argument count per kind.
var arity = map[Kind]int{
	KindGraph:     2,
	KindNode:      3,
	KindEdge:      5,
	KindGraphAttr: 5,
	KindNodeAttr:  6,
	KindEdgeAttr:  6,
	KindPosition:  5,
}

func (k Kind) String() string {
	for name, v := range kindNames {
		if v == k {
			return name
		}
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Event is one "add interval" fact produced by a parser.
type Event struct {
	Kind   Kind
	Row    uint64
	Column string
	Type   types.AttributeType
	Value  any
	Source uint64
	Target uint64
	X, Y   float64
	Start  float64
	End    float64
}

// ParseBound parses a start or end bound. Empty, "null", "-" and "inf"
// select the unbounded side given by sign (-1 for starts, +1 for ends);
// "+inf" and "-inf" are accepted explicitly.
func ParseBound(s string, sign int) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "-", "inf", "infinity":
		return math.Inf(sign), nil
	case "+inf", "+infinity":
		return math.Inf(1), nil
	case "-inf", "-infinity":
		return math.Inf(-1), nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: bound %q", ErrSyntax, s)
	}
	return v, nil
}

// ParseEvent turns one parsed command into an Event. Attribute values are
// decoded according to their declared type.
func ParseEvent(cmd *protocol.Command) (Event, error) {
	kind, ok := kindNames[cmd.Name]
	if !ok {
		return Event{}, fmt.Errorf("%w %q", ErrUnknownEvent, cmd.Name)
	}
	if want := arity[kind]; len(cmd.Args) != want {
		return Event{}, fmt.Errorf("%s: %w: got %d, want %d", kind, ErrArity, len(cmd.Args), want)
	}

	ev := Event{Kind: kind}
	args := cmd.Args
	var err error

	// Leading identifiers.
	switch kind {
	case KindNode, KindEdge, KindNodeAttr, KindEdgeAttr, KindPosition:
		if ev.Row, err = parseRow(string(args[0])); err != nil {
			return ev, err
		}
		args = args[1:]
	}
	switch kind {
	case KindEdge:
		if ev.Source, err = parseRow(string(args[0])); err != nil {
			return ev, err
		}
		if ev.Target, err = parseRow(string(args[1])); err != nil {
			return ev, err
		}
		args = args[2:]
	case KindGraphAttr, KindNodeAttr, KindEdgeAttr:
		ev.Column = string(args[0])
		ev.Type = types.ParseType(string(args[1]))
		if ev.Value, err = types.Decode(ev.Type, string(args[2])); err != nil {
			return ev, fmt.Errorf("%s %s: %w", kind, ev.Column, err)
		}
		args = args[3:]
	case KindPosition:
		if ev.X, err = parseFloat(string(args[0])); err != nil {
			return ev, err
		}
		if ev.Y, err = parseFloat(string(args[1])); err != nil {
			return ev, err
		}
		args = args[2:]
	}

	if ev.Start, err = ParseBound(string(args[0]), -1); err != nil {
		return ev, err
	}
	if ev.End, err = ParseBound(string(args[1]), 1); err != nil {
		return ev, err
	}
	return ev, nil
}

func parseRow(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: row %q", ErrSyntax, s)
	}
	return v, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: number %q", ErrSyntax, s)
	}
	return v, nil
}
