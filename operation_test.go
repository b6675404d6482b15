package pn532

import (
	"errors"
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
)

func TestCoalesce(t *testing.T) {
	tests := []struct {
		name  string
		ops   []Operation
		w     []byte
		rLen  int
		isErr bool
	}{
		{
			name: "reads only",
			ops:  []Operation{ReadOp(make([]byte, 1)), ReadOp(make([]byte, 4))},
			rLen: 5,
		},
		{
			name: "write only",
			ops:  []Operation{WriteOp([]byte{0x01, 0x02}), WriteOp([]byte{0x03})},
			w:    []byte{0x01, 0x02, 0x03},
		},
		{
			name: "write then read",
			ops:  []Operation{WriteOp([]byte{0xAA}), ReadOp(make([]byte, 2))},
			w:    []byte{0xAA},
			rLen: 2,
		},
		{
			name:  "read then write",
			ops:   []Operation{ReadOp(make([]byte, 1)), WriteOp([]byte{0x00})},
			isErr: true,
		},
		{
			name:  "unknown kind",
			ops:   []Operation{{Kind: OpKind(7)}},
			isErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, r, err := Coalesce(tt.ops)
			if tt.isErr {
				assert.True(t, errors.Is(err, ErrUnsupportedTx))
				return
			}
			assert.NoError(t, err)
			if diff := deep.Equal(w, tt.w); diff != nil {
				t.Error(diff)
			}
			assert.Len(t, r, tt.rLen)
		})
	}
}

func TestScatter(t *testing.T) {
	discard := make([]byte, 1)
	payload := make([]byte, 4)
	ops := []Operation{ReadOp(discard), ReadOp(payload)}
	Scatter(ops, []byte{0xFF, 0x01, 0x02, 0x03, 0x04})
	assert.Equal(t, []byte{0xFF}, discard)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, payload)
}

func TestScatter_SkipsWrites(t *testing.T) {
	cmd := []byte{0x10}
	payload := make([]byte, 2)
	Scatter([]Operation{WriteOp(cmd), ReadOp(payload)}, []byte{0xAB, 0xCD})
	assert.Equal(t, []byte{0x10}, cmd)
	assert.Equal(t, []byte{0xAB, 0xCD}, payload)
}
