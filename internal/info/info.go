// Package info implements the text-protocol info command channel (spec §6
// "Info command channel"): a type=1 proto message carrying
// `command1\ncommand2\n...commandN\n`, answered with `key\tvalue\n` lines
// parsed into a map. The cluster tender uses it for discovery and health
// checks over both one-shot and pooled connections.
package info

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aerokit-io/aerokit/errkit"
	"github.com/aerokit-io/aerokit/internal/wire"
)

// BuildRequest frames the given commands as a type=1 info message.
func BuildRequest(commands ...string) []byte {
	var body strings.Builder
	for _, c := range commands {
		body.WriteString(c)
		body.WriteByte('\n')
	}
	hdr := wire.PackProtoHeader(wire.ProtoTypeInfo, uint64(body.Len()))
	out := make([]byte, 0, wire.ProtoHeaderSize+body.Len())
	out = append(out, hdr[:]...)
	out = append(out, body.String()...)
	return out
}

// Query writes commands to rw and parses the key\tvalue response lines. The
// caller is responsible for the connection's deadline and lifecycle.
func Query(ctx context.Context, rw io.ReadWriter, commands ...string) (map[string]string, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if conn, ok := rw.(interface{ SetDeadline(time.Time) error }); ok {
			_ = conn.SetDeadline(deadline)
		}
	}

	req := BuildRequest(commands...)
	if _, err := rw.Write(req); err != nil {
		return nil, errkit.NewIO("writing info request", err)
	}

	var hdrBuf [wire.ProtoHeaderSize]byte
	if _, err := io.ReadFull(rw, hdrBuf[:]); err != nil {
		return nil, errkit.NewIO("reading info response header", err)
	}
	typ, length := wire.UnpackProtoHeader(hdrBuf)
	if typ != wire.ProtoTypeInfo {
		return nil, errkit.NewProtocol(fmt.Sprintf("unexpected proto type %d in info response", typ), nil)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(rw, body); err != nil {
		return nil, errkit.NewIO("reading info response body", err)
	}

	return parseResponse(body), nil
}

// parseResponse splits a `key\tvalue\n` response body into a map, per spec
// §6. Lines without a tab are ignored rather than treated as fatal - the
// server is known to emit an occasional bare blank line as a terminator.
func parseResponse(body []byte) map[string]string {
	out := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "\t")
		if !found {
			continue
		}
		out[key] = value
	}
	return out
}
