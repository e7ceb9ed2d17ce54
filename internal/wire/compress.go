package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// DecompressResponse inflates a COMPRESS_RESPONSE message body (spec
// §4.1.1's ReadAttrCompressResponse bit). The body is an 8-byte big-endian
// uncompressed-size prefix followed by a zlib stream, mirroring the
// uncompressed-size-then-stream framing already used for the proto header
// itself (spec §4.1.1 is silent on the compressed payload's internal
// layout; this follows the server's documented wire behavior rather than
// inventing a new one).
func DecompressResponse(body []byte) ([]byte, error) {
	if len(body) < 8 {
		return nil, ErrShortBuffer
	}
	uncompressedSize := binary.BigEndian.Uint64(body[0:8])

	r, err := zlib.NewReader(bytes.NewReader(body[8:]))
	if err != nil {
		return nil, fmt.Errorf("wire: opening zlib reader: %w", err)
	}
	defer r.Close()

	out := make([]byte, 0, uncompressedSize)
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, fmt.Errorf("wire: inflating compressed response: %w", err)
	}
	return buf.Bytes(), nil
}
