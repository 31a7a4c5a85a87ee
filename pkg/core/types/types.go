// Package types defines the value domains shared by every interval stream:
// the composite attribute key, the closed set of attribute types and the
// coercion from raw ingestion strings to typed values.
package types

import (
	"fmt"
	"strings"
)

// Key identifies one attribute slot: a named column of a numbered row.
// It is a plain comparable struct, so it can be used directly as a map key
// and both fields take part in equality and hashing.
type Key struct {
	Column string
	Row    uint64
}

// String returns the key as "row/column".
func (k Key) String() string {
	return fmt.Sprintf("%d/%s", k.Row, k.Column)
}

// Kind enumerates the supported value domains.
type Kind uint8

const (
	KindNone Kind = iota
	KindBoolean
	KindInteger
	KindReal
	KindString
	KindColor
	KindShape
	KindList
)

var kindNames = [...]string{
	KindNone:    "none",
	KindBoolean: "boolean",
	KindInteger: "integer",
	KindReal:    "real",
	KindString:  "string",
	KindColor:   "color",
	KindShape:   "shape",
	KindList:    "list",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ShapeKind is the categorical domain of node shapes.
type ShapeKind uint8

const (
	ShapeNone ShapeKind = iota
	ShapeEllipse
	ShapeRectangle
	ShapeRoundRectangle
	ShapeTriangle
	ShapeDiamond
	ShapeHexagon
	ShapeOctagon
	ShapeParallelogram
	ShapeVee
)

var shapeNames = map[string]ShapeKind{
	"none":            ShapeNone,
	"ellipse":         ShapeEllipse,
	"circle":          ShapeEllipse,
	"rectangle":       ShapeRectangle,
	"rect":            ShapeRectangle,
	"round_rectangle": ShapeRoundRectangle,
	"roundrect":       ShapeRoundRectangle,
	"triangle":        ShapeTriangle,
	"diamond":         ShapeDiamond,
	"hexagon":         ShapeHexagon,
	"octagon":         ShapeOctagon,
	"parallelogram":   ShapeParallelogram,
	"v":               ShapeVee,
	"vee":             ShapeVee,
}

// String returns the canonical lowercase name of the shape.
func (s ShapeKind) String() string {
	switch s {
	case ShapeEllipse:
		return "ellipse"
	case ShapeRectangle:
		return "rectangle"
	case ShapeRoundRectangle:
		return "round_rectangle"
	case ShapeTriangle:
		return "triangle"
	case ShapeDiamond:
		return "diamond"
	case ShapeHexagon:
		return "hexagon"
	case ShapeOctagon:
		return "octagon"
	case ShapeParallelogram:
		return "parallelogram"
	case ShapeVee:
		return "vee"
	default:
		return "none"
	}
}

// ParseShape maps a shape name to its ShapeKind. Unknown names report false.
func ParseShape(name string) (ShapeKind, bool) {
	s, ok := shapeNames[normalize(name)]
	return s, ok
}

// AttributeType is the declared type of an attribute. Shape carries the
// default shape for KindShape and is ShapeNone for every other kind.
type AttributeType struct {
	Kind  Kind
	Shape ShapeKind
}

// Convenience values for the non-parameterized kinds.
var (
	None    = AttributeType{Kind: KindNone}
	Boolean = AttributeType{Kind: KindBoolean}
	Integer = AttributeType{Kind: KindInteger}
	Real    = AttributeType{Kind: KindReal}
	String  = AttributeType{Kind: KindString}
	Color   = AttributeType{Kind: KindColor}
	List    = AttributeType{Kind: KindList}
)

// Shape returns the shape type whose default is s.
func Shape(s ShapeKind) AttributeType {
	return AttributeType{Kind: KindShape, Shape: s}
}

func (t AttributeType) String() string {
	if t.Kind == KindShape && t.Shape != ShapeNone {
		return "shape:" + t.Shape.String()
	}
	return t.Kind.String()
}

// IsNone reports whether the type is untyped.
func (t AttributeType) IsNone() bool {
	return t.Kind == KindNone
}

var typeAliases = map[string]Kind{
	"none":    KindNone,
	"boolean": KindBoolean,
	"bool":    KindBoolean,
	"integer": KindInteger,
	"int":     KindInteger,
	"long":    KindInteger,
	"real":    KindReal,
	"double":  KindReal,
	"float":   KindReal,
	"string":  KindString,
	"str":     KindString,
	"color":   KindColor,
	"colour":  KindColor,
	"paint":   KindColor,
	"shape":   KindShape,
	"list":    KindList,
}

// ParseType resolves a type name as found in ingestion files.
// Lookup is case-insensitive and "shape:<name>" selects a default shape.
// Unknown names map to None.
func ParseType(name string) AttributeType {
	n := normalize(name)
	if rest, ok := strings.CutPrefix(n, "shape:"); ok {
		s, _ := ParseShape(rest)
		return Shape(s)
	}
	kind, ok := typeAliases[n]
	if !ok {
		return None
	}
	return AttributeType{Kind: kind}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
