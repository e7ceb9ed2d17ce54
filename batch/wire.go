package batch

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/aerokit-io/aerokit/errkit"
	"github.com/aerokit-io/aerokit/internal/netpool"
	"github.com/aerokit-io/aerokit/internal/wire"
	"github.com/aerokit-io/aerokit/value"
)

// runGroup issues the one batch-read command owed to group.node, writing a
// Record into results at every index group carries, then returns or drops
// the connection depending on how the round trip went.
func runGroup(ctx context.Context, group nodeGroup, keys []Key, results []Record) error {
	conn, err := group.node.Pool().Checkout(ctx)
	if err != nil {
		markError(results, group.indices, err)
		return err
	}

	frame := buildBatchMessage(group, keys).Build()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err := conn.Write(frame); err != nil {
		wrapped := errkit.NewIO("flushing batch command frame", err)
		group.node.Pool().Drop(conn)
		markError(results, group.indices, wrapped)
		return wrapped
	}

	remaining := len(group.indices)
	for remaining > 0 {
		parsed, last, err := readBatchMessage(conn)
		if err != nil {
			group.node.Pool().Drop(conn)
			markError(results, group.indices, err)
			return err
		}
		if applyBatchMessage(parsed, results) {
			remaining--
		}
		if last {
			break
		}
	}

	group.node.Pool().Return(conn)
	return nil
}

func markError(results []Record, indices []int, err error) {
	for _, i := range indices {
		results[i].Err = err
	}
}

// buildBatchMessage assembles the single-field batch-read frame of spec
// §4.1.6 for one node group: a BatchIndex (or BatchIndexWithSet, when any
// key in the group carries a non-empty set name) field whose body lists
// every record's global index, digest and per-record read header.
func buildBatchMessage(group nodeGroup, keys []Key) wire.Message {
	sendSet := false
	for _, i := range group.indices {
		if keys[i].Key.Set != "" {
			sendSet = true
			break
		}
	}

	body := make([]byte, 0, 256)
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(group.indices)))
	body = append(body, countBuf[:]...)
	body = append(body, 0) // allow_inline

	for _, i := range group.indices {
		k := keys[i]
		var idxBuf [4]byte
		binary.BigEndian.PutUint32(idxBuf[:], uint32(i))
		body = append(body, idxBuf[:]...)
		body = append(body, k.Key.Digest[:]...)
		body = append(body, 0) // repeat_prev_header: always send the full header

		readAttr := wire.ReadAttrRead | wire.ReadAttrBatch
		var ops []wire.Op
		if len(k.Bins) == 0 {
			readAttr |= wire.ReadAttrGetAll
		} else {
			ops = make([]wire.Op, len(k.Bins))
			for j, name := range k.Bins {
				ops[j] = wire.Op{Type: wire.OpRead, BinName: name}
			}
		}

		nsField := wire.NewNamespaceField(k.Key.Namespace)
		fieldCount := uint16(1)
		var setField wire.Field
		if sendSet {
			setField = wire.NewSetField(k.Key.Set)
			fieldCount = 2
		}

		body = append(body, byte(readAttr))
		var fcBuf, ocBuf [2]byte
		binary.BigEndian.PutUint16(fcBuf[:], fieldCount)
		binary.BigEndian.PutUint16(ocBuf[:], uint16(len(ops)))
		body = append(body, fcBuf[:]...)
		body = append(body, ocBuf[:]...)

		body = nsField.Encode(body)
		if sendSet {
			body = setField.Encode(body)
		}
		for _, op := range ops {
			body = op.Encode(body)
		}
	}

	fieldType := wire.FieldBatchIndex
	if sendSet {
		fieldType = wire.FieldBatchIndexWithSet
	}

	return wire.Message{
		Header: wire.OpHeader{ReadAttr: wire.ReadAttrBatch},
		Fields: []wire.Field{wire.NewField(fieldType, body)},
	}
}

// readBatchMessage reads one complete record message off conn and reports
// whether its InfoAttr carried the LAST bit (spec §4.9 describes the same
// termination convention for scan; batch responses use it identically).
func readBatchMessage(conn *netpool.Conn) (wire.ParsedMessage, bool, error) {
	var hdr [wire.ProtoHeaderSize]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return wire.ParsedMessage{}, false, errkit.NewIO("reading batch response proto header", err)
	}
	_, length := wire.UnpackProtoHeader(hdr)

	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return wire.ParsedMessage{}, false, errkit.NewIO("reading batch response body", err)
	}

	parsed, err := wire.ParseMessage(body)
	if err != nil {
		return wire.ParsedMessage{}, false, errkit.NewProtocol("parsing batch response message", err)
	}
	last := parsed.Header.InfoAttr&wire.InfoAttrLast != 0
	return parsed, last, nil
}

// applyBatchMessage writes one decoded record into results at the index
// carried by its BatchIndex/BatchIndexWithSet field, reporting whether a
// record slot was actually filled (the terminal LAST-only message carries
// no batch index field and should not be counted).
func applyBatchMessage(parsed wire.ParsedMessage, results []Record) bool {
	idx, ok := batchIndexOf(parsed)
	if !ok {
		return false
	}
	if idx < 0 || idx >= len(results) {
		return false
	}

	code := errkit.ResultCode(parsed.Header.ResultCode)
	if code == errkit.KeyNotFound {
		results[idx] = Record{Found: false}
		return true
	}
	if !code.IsOk() {
		results[idx] = Record{Err: errkit.NewServerResult(code)}
		return true
	}

	bins := make(map[string]value.Value, len(parsed.Ops))
	for _, op := range parsed.Ops {
		v, err := wire.DecodeParticle(op.ParticleType, op.Value)
		if err != nil {
			results[idx] = Record{Err: errkit.NewProtocol("decoding batch response particle", err)}
			return true
		}
		bins[op.BinName] = v
	}
	results[idx] = Record{
		Found:      true,
		Bins:       bins,
		Generation: parsed.Header.Generation,
		Expiration: parsed.Header.Expiration,
	}
	return true
}

func batchIndexOf(parsed wire.ParsedMessage) (int, bool) {
	for _, f := range parsed.Fields {
		if f.Type == wire.FieldBatchIndex || f.Type == wire.FieldBatchIndexWithSet {
			if len(f.Body) < 4 {
				return 0, false
			}
			return int(binary.BigEndian.Uint32(f.Body[:4])), true
		}
	}
	return 0, false
}
