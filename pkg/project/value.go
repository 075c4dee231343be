package project

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Primitive tags used as the first element of array-encoded values.
const (
	TagMathNumber     = 4
	TagPositiveNumber = 5
	TagWholeNumber    = 6
	TagInteger        = 7
	TagAngle          = 8
	TagColor          = 9
	TagText           = 10
	TagBroadcast      = 11
	TagVariable       = 12
	TagList           = 13
)

// ValueKind identifies which variant a [Value] holds.
type ValueKind int

const (
	// ValueNull is an empty slot (JSON null).
	ValueNull ValueKind = iota
	// ValueBlockRef references another block by ID (JSON string).
	ValueBlockRef
	// ValueLiteral is a literal number, text, color or any unknown primitive.
	ValueLiteral
	// ValueBroadcastRef is [11, name, broadcastID].
	ValueBroadcastRef
	// ValueVariableRef is [12, name, variableID, ...].
	ValueVariableRef
	// ValueListRef is [13, name, listID, ...].
	ValueListRef
)

// String returns a lowercase name for the kind.
func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueBlockRef:
		return "block"
	case ValueLiteral:
		return "literal"
	case ValueBroadcastRef:
		return "broadcast"
	case ValueVariableRef:
		return "variable"
	case ValueListRef:
		return "list"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// ErrMalformedValue is returned when an array-encoded value is too short or
// its identifier is not a string.
var ErrMalformedValue = errors.New("malformed value")

// Value is the decoded payload of an input slot, or a top-level primitive
// stored directly in a target's block map.
type Value struct {
	Kind ValueKind

	// Tag is the primitive tag for array-encoded values (0 for null and
	// block references).
	Tag int

	// ID is the referenced identifier for ValueBlockRef, ValueBroadcastRef,
	// ValueVariableRef and ValueListRef.
	ID string

	// Name is the display name carried by broadcast, variable and list
	// references.
	Name string

	// Rest holds the remaining array elements: the literal payload for
	// ValueLiteral, trailing x/y coordinates for references.
	Rest []json.RawMessage
}

// IsRef reports whether the value references an identifier.
func (v *Value) IsRef() bool {
	switch v.Kind {
	case ValueBlockRef, ValueBroadcastRef, ValueVariableRef, ValueListRef:
		return true
	}
	return false
}

// BlockRef returns a block reference value.
func BlockRef(id string) *Value {
	return &Value{Kind: ValueBlockRef, ID: id}
}

// VariableRef returns a variable reference value.
func VariableRef(name, id string) *Value {
	return &Value{Kind: ValueVariableRef, Tag: TagVariable, Name: name, ID: id}
}

// ListRef returns a list reference value.
func ListRef(name, id string) *Value {
	return &Value{Kind: ValueListRef, Tag: TagList, Name: name, ID: id}
}

// BroadcastRef returns a broadcast reference value.
func BroadcastRef(name, id string) *Value {
	return &Value{Kind: ValueBroadcastRef, Tag: TagBroadcast, Name: name, ID: id}
}

// Literal returns a literal value with the given tag and JSON payload.
func Literal(tag int, payload ...json.RawMessage) *Value {
	return &Value{Kind: ValueLiteral, Tag: tag, Rest: payload}
}

// UnmarshalJSON decodes null, a block ID string, or a primitive array.
func (v *Value) UnmarshalJSON(data []byte) error {
	switch firstByte(data) {
	case 'n':
		*v = Value{Kind: ValueNull}
		return nil
	case '"':
		id, ok := decodeString(data)
		if !ok {
			return fmt.Errorf("%w: bad block reference", ErrMalformedValue)
		}
		*v = Value{Kind: ValueBlockRef, ID: id}
		return nil
	case '[':
		elems, err := decodeArray(data)
		if err != nil {
			return err
		}
		return v.fromArray(elems)
	default:
		return fmt.Errorf("%w: unexpected %q", ErrMalformedValue, firstByte(data))
	}
}

func (v *Value) fromArray(elems []json.RawMessage) error {
	if len(elems) == 0 {
		return fmt.Errorf("%w: empty array", ErrMalformedValue)
	}
	tag, ok := decodeTag(elems[0])
	if !ok {
		return fmt.Errorf("%w: non-numeric tag %s", ErrMalformedValue, elems[0])
	}

	var kind ValueKind
	switch tag {
	case TagBroadcast:
		kind = ValueBroadcastRef
	case TagVariable:
		kind = ValueVariableRef
	case TagList:
		kind = ValueListRef
	default:
		*v = Value{Kind: ValueLiteral, Tag: tag, Rest: elems[1:]}
		return nil
	}

	if len(elems) < 3 {
		return fmt.Errorf("%w: %s reference needs name and id", ErrMalformedValue, kind)
	}
	name, ok := decodeString(elems[1])
	if !ok {
		return fmt.Errorf("%w: %s reference name is not a string", ErrMalformedValue, kind)
	}
	id, ok := decodeString(elems[2])
	if !ok {
		return fmt.Errorf("%w: %s reference id is not a string", ErrMalformedValue, kind)
	}
	*v = Value{Kind: kind, Tag: tag, Name: name, ID: id, Rest: elems[3:]}
	return nil
}

// MarshalJSON encodes the value back into its original shape.
func (v *Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueNull:
		return []byte("null"), nil
	case ValueBlockRef:
		return marshal(v.ID)
	case ValueLiteral:
		elems := make([]any, 0, 1+len(v.Rest))
		elems = append(elems, v.Tag)
		for _, r := range v.Rest {
			elems = append(elems, r)
		}
		return marshal(elems)
	case ValueBroadcastRef, ValueVariableRef, ValueListRef:
		elems := make([]any, 0, 3+len(v.Rest))
		elems = append(elems, v.Tag, v.Name, v.ID)
		for _, r := range v.Rest {
			elems = append(elems, r)
		}
		return marshal(elems)
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformedValue, int(v.Kind))
	}
}

// ShadowMode is the first element of a wrapped input slot.
type ShadowMode int

const (
	// ShadowBare marks an input that is not wrapped in a shadow tag; the
	// whole slot is a single primitive array.
	ShadowBare ShadowMode = 0
	// ShadowSame means the slot holds its own shadow ([1, value]).
	ShadowSame ShadowMode = 1
	// ShadowNone means the slot holds a block without a shadow ([2, value]).
	ShadowNone ShadowMode = 2
	// ShadowObscured means a block covers a shadow ([3, value, shadow]).
	ShadowObscured ShadowMode = 3
)

// Input is a decoded input slot.
type Input struct {
	Mode ShadowMode

	// Value is the visible payload.
	Value *Value

	// Obscured is the shadow hidden under Value. Only set for ShadowObscured.
	Obscured *Value

	// Rest holds any elements after the known positions.
	Rest []json.RawMessage
}

// UnmarshalJSON decodes a wrapped ([mode, value, shadow?]) or bare input.
func (in *Input) UnmarshalJSON(data []byte) error {
	elems, err := decodeArray(data)
	if err != nil {
		return err
	}
	if len(elems) == 0 {
		return fmt.Errorf("%w: empty input", ErrMalformedValue)
	}

	mode, ok := decodeTag(elems[0])
	if !ok || mode < int(ShadowSame) || mode > int(ShadowObscured) {
		var v Value
		if err := v.fromArray(elems); err != nil {
			return err
		}
		*in = Input{Mode: ShadowBare, Value: &v}
		return nil
	}

	*in = Input{Mode: ShadowMode(mode)}
	if len(elems) > 1 {
		in.Value = &Value{}
		if err := json.Unmarshal(elems[1], in.Value); err != nil {
			return err
		}
	}
	rest := 2
	if in.Mode == ShadowObscured && len(elems) > 2 {
		in.Obscured = &Value{}
		if err := json.Unmarshal(elems[2], in.Obscured); err != nil {
			return err
		}
		rest = 3
	}
	if len(elems) > rest {
		in.Rest = elems[rest:]
	}
	return nil
}

// MarshalJSON encodes the input back into its original shape.
func (in *Input) MarshalJSON() ([]byte, error) {
	if in.Mode == ShadowBare {
		if in.Value == nil {
			return nil, fmt.Errorf("%w: bare input without value", ErrMalformedValue)
		}
		return in.Value.MarshalJSON()
	}

	elems := []any{int(in.Mode)}
	if in.Value != nil || in.Obscured != nil || len(in.Rest) > 0 {
		elems = append(elems, valueOrNull(in.Value))
	}
	if in.Obscured != nil {
		elems = append(elems, in.Obscured)
	}
	for _, r := range in.Rest {
		elems = append(elems, r)
	}
	return marshal(elems)
}

func valueOrNull(v *Value) any {
	if v == nil {
		return nil
	}
	return v
}
