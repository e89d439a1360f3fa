package api

import (
	"fmt"

	"github.com/ugorji/go/codec"
)

// msgpack with canonical map ordering, so that load -> store cycles
// produce identical bytes.
var msgpack = newHandle()

func newHandle() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{WriteExt: true}
	h.Canonical = true
	return h
}

// MarshalPayload serializes p to its on-disk form.
func MarshalPayload(p *Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("marshal payload: nil payload")
	}
	var out []byte
	if err := codec.NewEncoderBytes(&out, msgpack).Encode(p); err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return out, nil
}

// UnmarshalPayload parses the on-disk form. A payload stored without a
// transform gets the identity transform.
func UnmarshalPayload(b []byte) (*Payload, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("unmarshal payload: empty input")
	}
	var p Payload
	if err := codec.NewDecoderBytes(b, msgpack).Decode(&p); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.Transform.IsZero() {
		p.Transform = Identity()
	}
	return &p, nil
}
