package pn532

import "fmt"

type OpKind int

const (
	OpRead OpKind = iota
	OpWrite
)

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Operation is one step of a bus transaction.
type Operation struct {
	Kind OpKind
	Buf  []byte
}

func ReadOp(buf []byte) Operation {
	return Operation{Kind: OpRead, Buf: buf}
}

func WriteOp(buf []byte) Operation {
	return Operation{Kind: OpWrite, Buf: buf}
}

// Coalesce flattens ops into at most one write phase followed by at most one
// read phase, which is the shape a write/repeated-start/read bus cycle can run.
// Consecutive ops of the same kind are concatenated. Any other shape returns
// ErrUnsupportedTx.
func Coalesce(ops []Operation) (w []byte, r []byte, err error) {
	reading := false
	for _, op := range ops {
		switch op.Kind {
		case OpWrite:
			if reading {
				return nil, nil, fmt.Errorf("write after read: %w", ErrUnsupportedTx)
			}
			w = append(w, op.Buf...)
		case OpRead:
			reading = true
			r = append(r, make([]byte, len(op.Buf))...)
		default:
			return nil, nil, fmt.Errorf("unknown operation %v: %w", op.Kind, ErrUnsupportedTx)
		}
	}
	return w, r, nil
}

// Scatter distributes r, as filled by a coalesced read phase, back into the
// read buffers of ops.
func Scatter(ops []Operation, r []byte) {
	for _, op := range ops {
		if op.Kind != OpRead {
			continue
		}
		n := copy(op.Buf, r)
		r = r[n:]
	}
}
