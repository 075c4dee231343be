package project

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Field names whose second element is an identifier.
const (
	FieldVariable        = "VARIABLE"
	FieldList            = "LIST"
	FieldBroadcastOption = "BROADCAST_OPTION"
)

// Block is an executable block in a target's block map.
type Block struct {
	Opcode string

	// Parent is the ID of the enclosing block, nil for top-level blocks.
	Parent *string

	// Next is the ID of the following block in the stack, nil at the end.
	Next *string

	Inputs map[string]*Input
	Fields map[string]*Field

	// Comment is the ID of an attached comment. Comment IDs live in their
	// own map and are not part of the compacted identifier space.
	Comment *string

	// Extra holds all other members (shadow, topLevel, x, y, mutation, ...).
	Extra map[string]json.RawMessage
}

// UnmarshalJSON decodes a block object.
func (b *Block) UnmarshalJSON(data []byte) error {
	members, err := decodeObject(data)
	if err != nil {
		return err
	}
	*b = Block{}
	if err := take(members, "opcode", &b.Opcode); err != nil {
		return err
	}
	if err := take(members, "parent", &b.Parent); err != nil {
		return err
	}
	if err := take(members, "next", &b.Next); err != nil {
		return err
	}
	if err := take(members, "inputs", &b.Inputs); err != nil {
		return err
	}
	if err := take(members, "fields", &b.Fields); err != nil {
		return err
	}
	if err := take(members, "comment", &b.Comment); err != nil {
		return err
	}
	b.Extra = members
	return nil
}

// MarshalJSON encodes the block with sorted keys.
func (b *Block) MarshalJSON() ([]byte, error) {
	typed := map[string]any{
		"opcode": b.Opcode,
		"parent": b.Parent,
		"next":   b.Next,
	}
	if b.Inputs != nil {
		typed["inputs"] = b.Inputs
	}
	if b.Fields != nil {
		typed["fields"] = b.Fields
	}
	if b.Comment != nil {
		typed["comment"] = b.Comment
	}
	return marshal(withMembers(b.Extra, typed))
}

// BlockEntry is a value in a target's block map: either an object-form
// [Block] or a top-level primitive (a free-standing variable or list
// reporter stored as an array). Exactly one field is set.
type BlockEntry struct {
	Block     *Block
	Primitive *Value
}

// UnmarshalJSON decodes either form.
func (e *BlockEntry) UnmarshalJSON(data []byte) error {
	switch firstByte(data) {
	case '{':
		e.Block, e.Primitive = &Block{}, nil
		return json.Unmarshal(data, e.Block)
	case '[':
		e.Block, e.Primitive = nil, &Value{}
		return json.Unmarshal(data, e.Primitive)
	default:
		return fmt.Errorf("block entry must be an object or an array, got %q", firstByte(data))
	}
}

// MarshalJSON encodes whichever form is set.
func (e *BlockEntry) MarshalJSON() ([]byte, error) {
	switch {
	case e.Block != nil:
		return e.Block.MarshalJSON()
	case e.Primitive != nil:
		return e.Primitive.MarshalJSON()
	default:
		return nil, errors.New("empty block entry")
	}
}

// Field is a [displayName, id] pair. ID is only meaningful for VARIABLE,
// LIST and BROADCAST_OPTION fields.
type Field struct {
	Value json.RawMessage
	ID    *string

	// Rest holds elements after the second position.
	Rest []json.RawMessage

	// second keeps a non-string, non-null second element verbatim.
	second json.RawMessage
	// short records a field that was written with a single element.
	short bool
}

// NewField returns a field holding a display name and an identifier.
func NewField(name, id string) (*Field, error) {
	raw, err := marshal(name)
	if err != nil {
		return nil, fmt.Errorf("field name: %w", err)
	}
	return &Field{Value: raw, ID: &id}, nil
}

// Name returns the display name if it is a string.
func (f *Field) Name() string {
	s, _ := decodeString(f.Value)
	return s
}

// UnmarshalJSON decodes the field array.
func (f *Field) UnmarshalJSON(data []byte) error {
	elems, err := decodeArray(data)
	if err != nil {
		return err
	}
	if len(elems) == 0 {
		return errors.New("empty field")
	}
	*f = Field{Value: elems[0], short: len(elems) == 1}
	if len(elems) > 1 {
		if id, ok := decodeString(elems[1]); ok {
			f.ID = &id
		} else if !isNull(elems[1]) {
			f.second = elems[1]
		}
	}
	if len(elems) > 2 {
		f.Rest = elems[2:]
	}
	return nil
}

// MarshalJSON encodes the field array.
func (f *Field) MarshalJSON() ([]byte, error) {
	value := f.Value
	if value == nil {
		value = json.RawMessage("null")
	}
	if f.short && f.ID == nil && f.second == nil && len(f.Rest) == 0 {
		return marshal([]any{value})
	}
	elems := []any{value}
	switch {
	case f.ID != nil:
		elems = append(elems, *f.ID)
	case f.second != nil:
		elems = append(elems, f.second)
	default:
		elems = append(elems, nil)
	}
	for _, r := range f.Rest {
		elems = append(elems, r)
	}
	return marshal(elems)
}

// Variable is a [name, value] pair, with an optional trailing cloud flag.
type Variable struct {
	Name  string
	Value json.RawMessage
	Rest  []json.RawMessage
}

// UnmarshalJSON decodes the variable array.
func (v *Variable) UnmarshalJSON(data []byte) error {
	name, value, rest, err := decodeNamed(data)
	if err != nil {
		return fmt.Errorf("variable: %w", err)
	}
	*v = Variable{Name: name, Value: value, Rest: rest}
	return nil
}

// MarshalJSON encodes the variable array.
func (v *Variable) MarshalJSON() ([]byte, error) {
	return encodeNamed(v.Name, v.Value, v.Rest)
}

// List is a [name, items] pair.
type List struct {
	Name  string
	Items json.RawMessage
	Rest  []json.RawMessage
}

// UnmarshalJSON decodes the list array.
func (l *List) UnmarshalJSON(data []byte) error {
	name, items, rest, err := decodeNamed(data)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	*l = List{Name: name, Items: items, Rest: rest}
	return nil
}

// MarshalJSON encodes the list array.
func (l *List) MarshalJSON() ([]byte, error) {
	return encodeNamed(l.Name, l.Items, l.Rest)
}

func decodeNamed(data []byte) (string, json.RawMessage, []json.RawMessage, error) {
	elems, err := decodeArray(data)
	if err != nil {
		return "", nil, nil, err
	}
	if len(elems) < 2 {
		return "", nil, nil, errors.New("expected [name, value]")
	}
	name, ok := decodeString(elems[0])
	if !ok {
		return "", nil, nil, errors.New("name is not a string")
	}
	return name, elems[1], elems[2:], nil
}

func encodeNamed(name string, value json.RawMessage, rest []json.RawMessage) ([]byte, error) {
	if value == nil {
		value = json.RawMessage("null")
	}
	elems := []any{name, value}
	for _, r := range rest {
		elems = append(elems, r)
	}
	return marshal(elems)
}

// Comment is a workspace comment, optionally anchored to a block.
type Comment struct {
	// BlockID is the anchored block, nil for free-floating comments.
	BlockID *string
	Extra   map[string]json.RawMessage
}

// UnmarshalJSON decodes the comment object.
func (c *Comment) UnmarshalJSON(data []byte) error {
	members, err := decodeObject(data)
	if err != nil {
		return err
	}
	*c = Comment{}
	if err := take(members, "blockId", &c.BlockID); err != nil {
		return err
	}
	c.Extra = members
	return nil
}

// MarshalJSON encodes the comment object.
func (c *Comment) MarshalJSON() ([]byte, error) {
	return marshal(withMembers(c.Extra, map[string]any{"blockId": c.BlockID}))
}

// Opcodes of monitors whose id is a variable or list identifier.
const (
	OpcodeVariable     = "data_variable"
	OpcodeListContents = "data_listcontents"
)

// Monitor is an on-stage value watcher.
type Monitor struct {
	ID      string
	Opcode  string
	Visible bool
	Extra   map[string]json.RawMessage
}

// UnmarshalJSON decodes the monitor object.
func (m *Monitor) UnmarshalJSON(data []byte) error {
	members, err := decodeObject(data)
	if err != nil {
		return err
	}
	*m = Monitor{}
	if err := take(members, "id", &m.ID); err != nil {
		return err
	}
	if err := take(members, "opcode", &m.Opcode); err != nil {
		return err
	}
	if err := take(members, "visible", &m.Visible); err != nil {
		return err
	}
	m.Extra = members
	return nil
}

// MarshalJSON encodes the monitor object.
func (m *Monitor) MarshalJSON() ([]byte, error) {
	return marshal(withMembers(m.Extra, map[string]any{
		"id":      m.ID,
		"opcode":  m.Opcode,
		"visible": m.Visible,
	}))
}

// Category returns the identifier category the monitor's id refers to, or
// false when the monitor watches something other than a variable or list.
func (m *Monitor) Category() (Category, bool) {
	switch m.Opcode {
	case OpcodeVariable:
		return CategoryVariable, true
	case OpcodeListContents:
		return CategoryList, true
	}
	return 0, false
}
