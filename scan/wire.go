package scan

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/aerokit-io/aerokit/cluster"
	"github.com/aerokit-io/aerokit/errkit"
	"github.com/aerokit-io/aerokit/internal/netpool"
	"github.com/aerokit-io/aerokit/internal/wire"
	"github.com/aerokit-io/aerokit/value"
)

// runScanTask issues one scan request to node covering partitions, streaming
// every decoded record onto out until the response's LAST-flagged
// terminator arrives or ctx is cancelled. A failure at any point is
// delivered as one Record carrying Err rather than silently dropped, and
// does not affect any other node's task.
func runScanTask(ctx context.Context, node *cluster.Node, taskID uint64, req Request, partitions []uint16, out chan<- Record) {
	conn, err := node.Pool().Checkout(ctx)
	if err != nil {
		deliver(ctx, out, Record{Err: err})
		return
	}

	frame := buildScanMessage(taskID, req, partitions).Build()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err := conn.Write(frame); err != nil {
		node.Pool().Drop(conn)
		deliver(ctx, out, Record{Err: errkit.NewIO("flushing scan request", err)})
		return
	}

	for {
		parsed, last, partitionDone, err := readScanMessage(conn)
		if err != nil {
			node.Pool().Drop(conn)
			deliver(ctx, out, Record{Err: err})
			return
		}

		if !partitionDone && len(parsed.Ops) > 0 {
			rec, err := decodeScanRecord(parsed)
			if err != nil {
				node.Pool().Drop(conn)
				deliver(ctx, out, Record{Err: err})
				return
			}
			if !deliver(ctx, out, rec) {
				node.Pool().Drop(conn)
				return
			}
		}

		if last {
			break
		}
	}

	node.Pool().Return(conn)
}

// deliver sends rec on out, respecting cancellation (spec §5's "channel
// send when a scan consumer is behind" suspension point). Reports false if
// ctx was cancelled before the send completed.
func deliver(ctx context.Context, out chan<- Record, rec Record) bool {
	select {
	case out <- rec:
		return true
	case <-ctx.Done():
		return false
	}
}

// buildScanMessage assembles a scan request: the namespace/set filters, a
// u64 task id and the partition-id list the target node should scan, plus
// one read op per selected bin (or ReadAttrGetAll when none are named).
func buildScanMessage(taskID uint64, req Request, partitions []uint16) wire.Message {
	fields := []wire.Field{wire.NewNamespaceField(req.Namespace)}
	if req.Set != "" {
		fields = append(fields, wire.NewSetField(req.Set))
	}

	var taskIDBody [8]byte
	binary.BigEndian.PutUint64(taskIDBody[:], taskID)
	fields = append(fields, wire.NewField(wire.FieldTransactionID, taskIDBody[:]))

	partBody := make([]byte, 2*len(partitions))
	for i, p := range partitions {
		binary.BigEndian.PutUint16(partBody[2*i:2*i+2], p)
	}
	fields = append(fields, wire.NewField(wire.FieldPartitionIDArray, partBody))

	readAttr := wire.ReadAttrRead
	var ops []wire.Op
	if len(req.Bins) == 0 {
		readAttr |= wire.ReadAttrGetAll
	} else {
		ops = make([]wire.Op, len(req.Bins))
		for i, name := range req.Bins {
			ops[i] = wire.Op{Type: wire.OpRead, BinName: name}
		}
	}

	return wire.Message{
		Header: wire.OpHeader{ReadAttr: readAttr},
		Fields: fields,
		Ops:    ops,
	}
}

// readScanMessage reads one complete response message and classifies it:
// last reports the LAST info bit (stream termination, spec §4.9),
// partitionDone reports the PARTITION_DONE info bit (observed only for
// accounting — v1 never resumes a partial scan).
func readScanMessage(conn *netpool.Conn) (parsed wire.ParsedMessage, last bool, partitionDone bool, err error) {
	var hdr [wire.ProtoHeaderSize]byte
	if _, err = io.ReadFull(conn, hdr[:]); err != nil {
		return wire.ParsedMessage{}, false, false, errkit.NewIO("reading scan response proto header", err)
	}
	_, length := wire.UnpackProtoHeader(hdr)

	body := make([]byte, length)
	if _, err = io.ReadFull(conn, body); err != nil {
		return wire.ParsedMessage{}, false, false, errkit.NewIO("reading scan response body", err)
	}

	parsed, err = wire.ParseMessage(body)
	if err != nil {
		return wire.ParsedMessage{}, false, false, errkit.NewProtocol("parsing scan response message", err)
	}
	last = parsed.Header.InfoAttr&wire.InfoAttrLast != 0
	partitionDone = parsed.Header.InfoAttr&wire.InfoAttrPartitionDone != 0
	return parsed, last, partitionDone, nil
}

func decodeScanRecord(parsed wire.ParsedMessage) (Record, error) {
	var digest [20]byte
	for _, f := range parsed.Fields {
		if f.Type == wire.FieldDigestRipe && len(f.Body) == 20 {
			copy(digest[:], f.Body)
		}
	}

	bins := make(map[string]value.Value, len(parsed.Ops))
	for _, op := range parsed.Ops {
		v, err := wire.DecodeParticle(op.ParticleType, op.Value)
		if err != nil {
			return Record{}, errkit.NewProtocol("decoding scan response particle", err)
		}
		bins[op.BinName] = v
	}

	return Record{
		Digest:     digest,
		Bins:       bins,
		Generation: parsed.Header.Generation,
		Expiration: parsed.Header.Expiration,
	}, nil
}
