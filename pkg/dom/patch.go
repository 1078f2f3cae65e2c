package dom

import "fmt"

// PatchOp is the type of patch operation.
type PatchOp uint8

const (
	PatchSetText    PatchOp = 0x01 // Update placeholder text
	PatchSetAttr    PatchOp = 0x02 // Set/update attribute
	PatchRemoveAttr PatchOp = 0x03 // Remove attribute
)

// String returns the string representation of the PatchOp.
func (op PatchOp) String() string {
	switch op {
	case PatchSetText:
		return "SetText"
	case PatchSetAttr:
		return "SetAttr"
	case PatchRemoveAttr:
		return "RemoveAttr"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the op by name.
func (op PatchOp) MarshalText() ([]byte, error) {
	s := op.String()
	if s == "Unknown" {
		return nil, fmt.Errorf("dom: unknown patch op %d", op)
	}
	return []byte(s), nil
}

// UnmarshalText decodes an op name.
func (op *PatchOp) UnmarshalText(b []byte) error {
	switch string(b) {
	case "SetText":
		*op = PatchSetText
	case "SetAttr":
		*op = PatchSetAttr
	case "RemoveAttr":
		*op = PatchRemoveAttr
	default:
		return fmt.Errorf("dom: unknown patch op %q", b)
	}
	return nil
}

// Patch represents a single DOM operation to apply.
type Patch struct {
	Op    PatchOp `json:"op"`              // Operation type
	Scope string  `json:"scope"`           // Target scope id (data-markout)
	Key   string  `json:"key,omitempty"`   // Attribute name (SetAttr/RemoveAttr)
	Index int     `json:"index,omitempty"` // Placeholder index (SetText)
	Value string  `json:"value,omitempty"` // New value
}

// PatchSink receives patches as they are applied.
type PatchSink interface {
	Patch(p Patch)
}

// PatchSinkFunc adapts a function to a PatchSink.
type PatchSinkFunc func(p Patch)

// Patch calls f(p).
func (f PatchSinkFunc) Patch(p Patch) { f(p) }

// PatchBuffer is a PatchSink collecting patches in order.
type PatchBuffer struct {
	patches []Patch
}

// Patch appends p.
func (b *PatchBuffer) Patch(p Patch) {
	b.patches = append(b.patches, p)
}

// Len returns the number of buffered patches.
func (b *PatchBuffer) Len() int {
	return len(b.patches)
}

// Drain returns the buffered patches and empties the buffer.
func (b *PatchBuffer) Drain() []Patch {
	out := b.patches
	b.patches = nil
	return out
}
