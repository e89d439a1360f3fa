package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// pngChunkType is private (lower-case first letter) and ancillary, so
// decoders that do not know it skip it.
const pngChunkType = "dwLd"

// PNG stores the payload in a private ancillary chunk placed before IEND.
type PNG struct{}

func (PNG) Name() string { return "png" }

type pngChunk struct {
	typ        string
	start, end int // byte range of the whole chunk in the file
	data       []byte
	crc        uint32
}

func pngChunks(raw []byte) ([]pngChunk, error) {
	if !bytes.HasPrefix(raw, pngSignature) {
		return nil, fmt.Errorf("png: bad signature: %w", ErrCorrupt)
	}
	var chunks []pngChunk
	off := len(pngSignature)
	for off < len(raw) {
		if len(raw)-off < 12 {
			return nil, fmt.Errorf("png: truncated chunk header at %d: %w", off, ErrCorrupt)
		}
		n := int(binary.BigEndian.Uint32(raw[off:]))
		if n < 0 || n > len(raw)-off-12 {
			return nil, fmt.Errorf("png: chunk length %d overruns file: %w", n, ErrCorrupt)
		}
		c := pngChunk{
			typ:   string(raw[off+4 : off+8]),
			start: off,
			end:   off + 12 + n,
			data:  raw[off+8 : off+8+n],
			crc:   binary.BigEndian.Uint32(raw[off+8+n:]),
		}
		chunks = append(chunks, c)
		off = c.end
		if c.typ == "IEND" {
			break
		}
	}
	return chunks, nil
}

func (PNG) Decode(raw []byte) ([]byte, []byte, error) {
	chunks, err := pngChunks(raw)
	if err != nil {
		return nil, nil, err
	}
	for _, c := range chunks {
		if c.typ != pngChunkType {
			continue
		}
		if crc32.ChecksumIEEE(raw[c.start+4:c.end-4]) != c.crc {
			return nil, nil, fmt.Errorf("png: %s crc mismatch: %w", pngChunkType, ErrCorrupt)
		}
		carrier := make([]byte, 0, len(raw)-(c.end-c.start))
		carrier = append(carrier, raw[:c.start]...)
		carrier = append(carrier, raw[c.end:]...)
		return carrier, bytes.Clone(c.data), nil
	}
	return raw, nil, ErrNoPayload
}

func (PNG) Encode(carrier, payload []byte) ([]byte, error) {
	chunks, err := pngChunks(carrier)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(carrier)+len(payload)+12)
	out = append(out, pngSignature...)
	wrote := false
	for _, c := range chunks {
		switch c.typ {
		case pngChunkType:
			continue
		case "IEND":
			out = appendPNGChunk(out, pngChunkType, payload)
			wrote = true
		}
		out = append(out, carrier[c.start:c.end]...)
	}
	if !wrote {
		return nil, fmt.Errorf("png: missing IEND: %w", ErrCorrupt)
	}
	if last := chunks[len(chunks)-1]; last.end < len(carrier) {
		out = append(out, carrier[last.end:]...)
	}
	return out, nil
}

func appendPNGChunk(out []byte, typ string, data []byte) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
	mark := len(out)
	out = append(out, typ...)
	out = append(out, data...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(out[mark:]))
}
