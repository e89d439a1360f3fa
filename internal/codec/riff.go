package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const riffChunkID = "dwld"

// RIFF stores the payload in an extra chunk of a RIFF container (WAV).
// The RIFF size field is rewritten to cover the result.
type RIFF struct{}

func (RIFF) Name() string { return "riff" }

type riffChunk struct {
	id         string
	start, end int // including the pad byte
	data       []byte
}

func riffChunks(raw []byte) ([]riffChunk, error) {
	if len(raw) < 12 || string(raw[:4]) != "RIFF" {
		return nil, fmt.Errorf("riff: bad header: %w", ErrCorrupt)
	}
	var chunks []riffChunk
	off := 12
	for off < len(raw) {
		if len(raw)-off < 8 {
			return nil, fmt.Errorf("riff: truncated chunk header at %d: %w", off, ErrCorrupt)
		}
		n64 := uint64(binary.LittleEndian.Uint32(raw[off+4:]))
		if n64 > uint64(len(raw)-off-8) {
			return nil, fmt.Errorf("riff: chunk length %d overruns file: %w", n64, ErrCorrupt)
		}
		n := int(n64)
		end := off + 8 + n
		if n%2 == 1 && end < len(raw) {
			end++
		}
		chunks = append(chunks, riffChunk{id: string(raw[off : off+4]), start: off, end: end, data: raw[off+8 : off+8+n]})
		off = end
	}
	return chunks, nil
}

func (RIFF) Decode(raw []byte) ([]byte, []byte, error) {
	chunks, err := riffChunks(raw)
	if err != nil {
		return nil, nil, err
	}
	for _, c := range chunks {
		if c.id != riffChunkID {
			continue
		}
		carrier := make([]byte, 0, len(raw)-(c.end-c.start))
		carrier = append(carrier, raw[:c.start]...)
		carrier = append(carrier, raw[c.end:]...)
		setRIFFSize(carrier)
		return carrier, bytes.Clone(c.data), nil
	}
	return raw, nil, ErrNoPayload
}

// Encode appends the payload chunk after the carrier's other chunks.
// A final odd-sized chunk without its pad byte is padded first, so
// Decode of the result returns the carrier in that padded form.
func (RIFF) Encode(carrier, payload []byte) ([]byte, error) {
	chunks, err := riffChunks(carrier)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(carrier)+len(payload)+9)
	out = append(out, carrier[:12]...)
	for _, c := range chunks {
		if c.id == riffChunkID {
			continue
		}
		out = append(out, carrier[c.start:c.end]...)
	}
	if len(out)%2 == 1 {
		out = append(out, 0)
	}
	out = append(out, riffChunkID...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	if len(payload)%2 == 1 {
		out = append(out, 0)
	}
	setRIFFSize(out)
	return out, nil
}

func setRIFFSize(b []byte) {
	binary.LittleEndian.PutUint32(b[4:8], uint32(len(b)-8))
}
