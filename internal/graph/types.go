// types.go - node contract and typed parameter model
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

// Package graph implements the node contract and the graph: the typed
// node/edge store, cycle detection, and the topological ordering the
// scheduler drives.
package graph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/constellationstudio/engine/internal/frame"
)

// NodeID is a process-unique opaque identifier, stable for the node's
// lifetime.
type NodeID = uuid.UUID

// NewNodeID allocates a fresh NodeID.
func NewNodeID() NodeID { return uuid.New() }

// PortType is the closed set of connection types. An edge is valid only if
// its type is in both the source's declared outputs and the target's
// declared inputs.
type PortType int

const (
	PortRender PortType = iota
	PortAudio
	PortControl
	PortTally
)

func (p PortType) String() string {
	switch p {
	case PortRender:
		return "render"
	case PortAudio:
		return "audio"
	case PortControl:
		return "control"
	case PortTally:
		return "tally"
	default:
		return "unknown"
	}
}

// Kind is the closed tagged set of node variants.
type Kind string

const (
	KindInputCamera         Kind = "input.camera"
	KindInputScreen         Kind = "input.screen"
	KindInputWindow         Kind = "input.window"
	KindInputFile           Kind = "input.file"
	KindInputTestPattern    Kind = "input.test_pattern"
	KindOutputVirtualWebcam Kind = "output.virtual_webcam"
	KindOutputPreview       Kind = "output.preview"
	KindEffectColorCorrect  Kind = "effect.color_correct"
	KindEffectBlur          Kind = "effect.blur"
	KindEffectSharpen       Kind = "effect.sharpen"
	KindEffectTransform     Kind = "effect.transform"
	KindEffectComposite     Kind = "effect.composite"
	KindAudioInput          Kind = "audio.input"
	KindAudioMixer          Kind = "audio.mixer"
	KindAudioEffect         Kind = "audio.effect"
	KindAudioOutput         Kind = "audio.output"
	KindTallyGenerator      Kind = "tally.generator"
	KindTallyMonitor        Kind = "tally.monitor"
	KindTallyLogic          Kind = "tally.logic"
	KindTallyRouter         Kind = "tally.router"
	KindControlLFO          Kind = "control.lfo"
	KindControlTimeline     Kind = "control.timeline"
	KindControlMath         Kind = "control.math"
	KindControlParameter    Kind = "control.parameter"
)

// ValueType is the closed set of parameter value kinds.
type ValueType int

const (
	TypeBool ValueType = iota
	TypeInt
	TypeFloat
	TypeString
	TypeVec2
	TypeVec3
	TypeVec4
	TypeColor
	TypeEnum
)

// Value is a typed sum over the parameter bag's value kinds. Exactly one
// field is meaningful, selected by Type, keeping untyped interface{} values
// out of the core boundary.
type Value struct {
	Type ValueType
	B    bool
	I    int64
	F    float64
	S    string
	Vec  [4]float64 // used by Vec2 (first 2), Vec3 (first 3), Vec4, Color (RGBA)
}

func Float(f float64) Value { return Value{Type: TypeFloat, F: f} }
func Int(i int64) Value     { return Value{Type: TypeInt, I: i} }
func Bool(b bool) Value     { return Value{Type: TypeBool, B: b} }
func String(s string) Value { return Value{Type: TypeString, S: s} }
func Enum(s string) Value   { return Value{Type: TypeEnum, S: s} }
func Color(r, g, b, a float64) Value {
	return Value{Type: TypeColor, Vec: [4]float64{r, g, b, a}}
}

// AsFloat returns a best-effort numeric interpretation, used by controllers
// reading arbitrary target parameters.
func (v Value) AsFloat() float64 {
	switch v.Type {
	case TypeFloat:
		return v.F
	case TypeInt:
		return float64(v.I)
	case TypeBool:
		if v.B {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// ParamDef declares a parameter's type, default, and optional bounds.
type ParamDef struct {
	Type        ValueType
	Default     Value
	Min         *float64
	Max         *float64
	Description string
}

// InRange reports whether v satisfies d's declared bounds (numeric types
// only; non-numeric types are always in range).
func (d ParamDef) InRange(v Value) bool {
	if d.Min == nil && d.Max == nil {
		return true
	}
	if v.Type != TypeFloat && v.Type != TypeInt {
		return true
	}
	f := v.AsFloat()
	if d.Min != nil && f < *d.Min {
		return false
	}
	if d.Max != nil && f > *d.Max {
		return false
	}
	return true
}

// NodeProperties is the static description returned by Describe(): name,
// kind, declared port types, and parameter schema.
type NodeProperties struct {
	ID      NodeID
	Name    string
	Kind    Kind
	Inputs  []PortType
	Outputs []PortType
	Schema  map[string]ParamDef
}

// Node is the uniform four-operation contract every node variant
// implements. A node's declared Describe().Inputs/Outputs are immutable for
// its lifetime; only Process/SetParameter/GetParameter behavior differs
// across variants.
type Node interface {
	// Process transforms bundle into the node's output for this tick. It
	// must not retain bundle past return and is never called concurrently
	// with itself.
	Process(tickTime float64, bundle frame.Bundle) (frame.Bundle, error)
	Describe() NodeProperties
	SetParameter(key string, value Value) error
	GetParameter(key string) (Value, bool)
}

// ParamError reports a SetParameter validation failure.
type ParamError struct {
	Key    string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Key, e.Reason)
}

// BaseNode implements the schema-validating parameter bag shared by every
// node variant, so each variant only needs to declare its schema and
// implement Process.
type BaseNode struct {
	id         NodeID
	name       string
	kind       Kind
	inputs     []PortType
	outputs    []PortType
	schema     map[string]ParamDef
	parameters map[string]Value
}

// NewBaseNode constructs a BaseNode with parameters initialized to their
// schema defaults.
func NewBaseNode(id NodeID, name string, kind Kind, inputs, outputs []PortType, schema map[string]ParamDef) BaseNode {
	params := make(map[string]Value, len(schema))
	for k, def := range schema {
		params[k] = def.Default
	}
	return BaseNode{id: id, name: name, kind: kind, inputs: inputs, outputs: outputs, schema: schema, parameters: params}
}

func (b *BaseNode) Describe() NodeProperties {
	return NodeProperties{ID: b.id, Name: b.name, Kind: b.kind, Inputs: b.inputs, Outputs: b.outputs, Schema: b.schema}
}

func (b *BaseNode) SetParameter(key string, value Value) error {
	def, ok := b.schema[key]
	if !ok {
		return &ParamError{Key: key, Reason: "not declared in schema"}
	}
	if value.Type != def.Type {
		return &ParamError{Key: key, Reason: "type mismatch"}
	}
	if !def.InRange(value) {
		return &ParamError{Key: key, Reason: "out of range"}
	}
	b.parameters[key] = value
	return nil
}

func (b *BaseNode) GetParameter(key string) (Value, bool) {
	v, ok := b.parameters[key]
	return v, ok
}

// Param is a convenience accessor for node implementations reading their own
// validated parameters; it assumes the key is declared (a programming error
// otherwise, since the schema is fixed at construction).
func (b *BaseNode) Param(key string) Value {
	return b.parameters[key]
}

func (b *BaseNode) ID() NodeID { return b.id }
