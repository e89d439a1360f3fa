package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

var trailerMagic = []byte("DWPAYLD1")

const trailerSize = 4 + 8

// Trailer appends the payload after the carrier, followed by its length and
// a magic marker. It suits formats whose readers stop at their own end
// marker, and opaque blobs such as encrypted archives.
type Trailer struct{}

func (Trailer) Name() string { return "trailer" }

func (Trailer) Decode(raw []byte) ([]byte, []byte, error) {
	if len(raw) < trailerSize || !bytes.HasSuffix(raw, trailerMagic) {
		return raw, nil, ErrNoPayload
	}
	lenAt := len(raw) - trailerSize
	n64 := uint64(binary.BigEndian.Uint32(raw[lenAt:]))
	if n64 > uint64(lenAt) {
		return nil, nil, fmt.Errorf("trailer: payload length %d overruns file: %w", n64, ErrCorrupt)
	}
	start := lenAt - int(n64)
	return bytes.Clone(raw[:start]), bytes.Clone(raw[start:lenAt]), nil
}

func (Trailer) Encode(carrier, payload []byte) ([]byte, error) {
	out := make([]byte, 0, len(carrier)+len(payload)+trailerSize)
	out = append(out, carrier...)
	out = append(out, payload...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(payload)))
	return append(out, trailerMagic...), nil
}
