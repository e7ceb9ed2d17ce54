// Package command implements the single-key command executor of spec §4.7:
// resolve the owning node, check out a pooled connection, serialize and
// flush the request, parse the response, and retry transient failures up to
// a bounded number of attempts or until the deadline passes.
//
// Grounded on orbas1-Synnergy/core/transaction_manager.go's submit-retry
// loop (attempt counter, deadline check, classify-and-retry on a transient
// error, surface anything else), generalized from its fixed backoff to spec
// §4.7's policy-configurable sleep-or-yield between attempts.
package command

import (
	"context"
	"errors"
	"io"
	"runtime"
	"time"

	"github.com/aerokit-io/aerokit/cluster"
	"github.com/aerokit-io/aerokit/errkit"
	"github.com/aerokit-io/aerokit/internal/netpool"
	"github.com/aerokit-io/aerokit/internal/wire"
	"github.com/aerokit-io/aerokit/value"
)

func runtimeYield() { runtime.Gosched() }

// readResponse reads one full data-operation message off conn: the 8-byte
// proto header, then exactly that many bytes of body, then parses it.
func readResponse(conn *netpool.Conn) (wire.ParsedMessage, error) {
	var hdr [wire.ProtoHeaderSize]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return wire.ParsedMessage{}, errkit.NewIO("reading response proto header", err)
	}
	_, length := wire.UnpackProtoHeader(hdr)

	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return wire.ParsedMessage{}, errkit.NewIO("reading response body", err)
	}

	parsed, err := wire.ParseMessage(body)
	if err != nil {
		return wire.ParsedMessage{}, errkit.NewProtocol("parsing response message", err)
	}
	return parsed, nil
}

// Policy governs one command's timeout and retry behavior (spec §4.7).
type Policy struct {
	TotalTimeout        time.Duration // 0 means no deadline
	SleepBetweenRetries time.Duration // 0 means yield instead of sleeping
	MaxRetries          int           // default 2 (3 total attempts)
}

// DefaultPolicy matches spec §4.7's stated default of 2 retries (3 attempts)
// with no total timeout and a cooperative yield between attempts.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 2}
}

func (p Policy) maxRetries() int {
	if p.MaxRetries > 0 {
		return p.MaxRetries
	}
	return 2
}

// Request is everything the executor needs to build one data-operation
// frame: the target key, the fields and ops to attach, and the read/write
// attribute bits selecting the command's semantics.
type Request struct {
	Key       value.Key
	ReadAttr  wire.ReadAttr
	WriteAttr wire.WriteAttr
	Ops       []wire.Op
}

// Response is the decoded result of one round trip: the parsed message and
// the boolean outcome spec §7 assigns to KeyNotFound (true for exists/delete,
// surfaced as a normal outcome rather than an error).
type Response struct {
	Message     wire.ParsedMessage
	KeyNotFound bool
	Record      value.Record
}

// Resolve looks up the node currently owning a partition. *cluster.Cluster's
// Resolve method satisfies this signature directly; tests substitute a
// closure over a hand-built node instead of a live cluster.
type Resolve func(namespace string, partitionID uint16) *cluster.Node

// Execute runs the retry/timeout loop described by spec §4.7 against a
// single key, calling resolve to find the owning node on every iteration
// (the partition map may change between retries).
func Execute(ctx context.Context, resolve Resolve, req Request, policy Policy) (Response, error) {
	var deadline time.Time
	hasDeadline := policy.TotalTimeout > 0
	if hasDeadline {
		deadline = time.Now().Add(policy.TotalTimeout)
	}

	maxAttempts := policy.maxRetries() + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if policy.SleepBetweenRetries > 0 {
				time.Sleep(policy.SleepBetweenRetries)
			} else {
				runtimeYield()
			}
		}

		if hasDeadline && time.Now().After(deadline) {
			return Response{}, errkit.NewTimeout("total deadline exceeded before a response was received")
		}

		node := resolve(req.Key.Namespace, req.Key.PartitionID())
		if node == nil {
			lastErr = errkit.NewIO("no node available to resolve this key's partition", nil)
			continue
		}

		conn, err := node.Pool().Checkout(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		remaining := remainingMillis(hasDeadline, deadline)
		resp, execErr := roundTrip(ctx, conn, req, remaining)
		if execErr != nil {
			if isRetryable(execErr) {
				node.Pool().Drop(conn)
				lastErr = execErr
				continue
			}
			if errkit.IsKeyNotFound(execErr) {
				node.Pool().Return(conn)
				return Response{KeyNotFound: true}, execErr
			}
			node.Pool().Drop(conn)
			return Response{}, execErr
		}

		node.Pool().Return(conn)
		return resp, nil
	}

	if lastErr != nil {
		return Response{}, lastErr
	}
	return Response{}, errkit.NewTimeout("retries exhausted")
}

func remainingMillis(hasDeadline bool, deadline time.Time) uint32 {
	if !hasDeadline {
		return 0
	}
	left := time.Until(deadline)
	if left <= 0 {
		return 1
	}
	return uint32(left.Milliseconds())
}

// roundTrip serializes req onto conn, flushes it, and parses the response.
func roundTrip(ctx context.Context, conn *netpool.Conn, req Request, remainingMs uint32) (Response, error) {
	msg := buildMessage(req, remainingMs)
	frame := msg.Build()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(frame); err != nil {
		return Response{}, errkit.NewIO("flushing command frame", err)
	}
	conn.Touch(0)

	parsed, err := readResponse(conn)
	if err != nil {
		return Response{}, err
	}
	conn.Touch(0)

	code := errkit.ResultCode(parsed.Header.ResultCode)
	if !code.IsOk() {
		if code == errkit.KeyNotFound {
			return Response{Message: parsed, KeyNotFound: true}, errkit.NewServerResult(code)
		}
		return Response{}, errkit.NewServerResult(code)
	}

	rec, err := decodeRecord(req.Key, parsed)
	if err != nil {
		return Response{}, err
	}
	return Response{Message: parsed, Record: rec}, nil
}

func buildMessage(req Request, remainingMs uint32) wire.Message {
	fields := []wire.Field{
		wire.NewNamespaceField(req.Key.Namespace),
	}
	if req.Key.Set != "" {
		fields = append(fields, wire.NewSetField(req.Key.Set))
	}
	fields = append(fields, wire.NewDigestField(req.Key.Digest))

	return wire.Message{
		Header: wire.OpHeader{
			ReadAttr:         req.ReadAttr,
			WriteAttr:        req.WriteAttr,
			TransactionTTLMs: remainingMs,
		},
		Fields: fields,
		Ops:    req.Ops,
	}
}

func decodeRecord(key value.Key, parsed wire.ParsedMessage) (value.Record, error) {
	bins := make(map[string]value.Value, len(parsed.Ops))
	for _, op := range parsed.Ops {
		v, err := wire.DecodeParticle(op.ParticleType, op.Value)
		if err != nil {
			return value.Record{}, errkit.NewProtocol("decoding response particle", err)
		}
		bins[op.BinName] = v
	}
	return value.Record{
		Key:        key,
		Bins:       bins,
		Generation: parsed.Header.Generation,
		Expiration: parsed.Header.Expiration,
	}, nil
}

func isRetryable(err error) bool {
	var e *errkit.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Retryable()
}
