package msgpack

import "github.com/aerokit-io/aerokit/value"

// CdtContext locates a nested CDT element to operate on (e.g. a list inside a
// map bin). Grounded on original_source/src/operations/cdt_context.rs's
// CdtContext{id, flags, value}: id selects list-by-index/map-by-key/etc, and
// value carries the index/key/rank argument itself.
type CdtContext struct {
	ID    byte
	Flags byte
	Value value.Value
}

// CdtArgument is one positional argument to a CDT sub-operation.
type CdtArgument struct {
	Value value.Value
}

// CdtOperation is a single collection data type command: an opcode plus its
// positional arguments, optionally applied through a chain of nested
// contexts (spec §4.1.6).
type CdtOperation struct {
	Op   uint16
	Args []CdtArgument
}

// PackCdtOp encodes a CDT operation, wrapping it in the context envelope
// described by spec §4.1.6 when ctx is non-empty: an outer 3-element array
// [0xff, packed-context-pairs, [op, ...args]]. Grounded on
// original_source/src/msgpack/encoder.rs's pack_cdt_op.
func (e *Encoder) PackCdtOp(op CdtOperation, ctx []CdtContext) {
	if len(ctx) == 0 {
		e.writeUint16(op.Op)
		if len(op.Args) > 0 {
			e.PackArrayBegin(len(op.Args))
		}
		for _, arg := range op.Args {
			e.PackValue(arg.Value)
		}
		return
	}

	e.PackArrayBegin(3)
	e.packInteger(0xff)
	e.PackArrayBegin(len(ctx) * 2)
	for _, c := range ctx {
		if c.ID == 0 {
			e.packInteger(int64(c.ID))
		} else {
			e.packInteger(int64(c.ID | c.Flags))
		}
		e.PackValue(c.Value)
	}

	e.PackArrayBegin(len(op.Args) + 1)
	e.packInteger(int64(op.Op))
	for _, arg := range op.Args {
		e.PackValue(arg.Value)
	}
}
