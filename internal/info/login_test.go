package info

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/aerokit-io/aerokit/errkit"
	"github.com/aerokit-io/aerokit/internal/netpool"
	"github.com/aerokit-io/aerokit/internal/wire"
)

func dialedConn(t *testing.T, respond func(body []byte) []byte) *netpool.Conn {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var hdr [wire.ProtoHeaderSize]byte
		if _, err := io.ReadFull(conn, hdr[:]); err != nil {
			return
		}
		_, length := wire.UnpackProtoHeader(hdr)
		body := make([]byte, length)
		if _, err := io.ReadFull(conn, body); err != nil {
			return
		}
		_, _ = conn.Write(respond(body))
	}()

	dial := func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", ln.Addr().String())
	}
	pool := netpool.New(netpool.Config{
		MaxConnsPerNode:  1,
		ConnPoolsPerNode: 1,
		IdleTimeout:      time.Minute,
		DialTimeout:      time.Second,
	}, dial, nil)

	conn, err := pool.Checkout(context.Background())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	return conn
}

func loginResponse(code errkit.ResultCode) []byte {
	sub := make([]byte, adminSubHeaderSize)
	sub[1] = byte(code)
	hdr := wire.PackProtoHeader(wire.ProtoTypeAdmin, uint64(len(sub)))
	return append(hdr[:], sub...)
}

func TestBuildLoginMessageFraming(t *testing.T) {
	frame := buildLoginMessage("bob", []byte("hash"))

	var hdr [wire.ProtoHeaderSize]byte
	copy(hdr[:], frame[:wire.ProtoHeaderSize])
	typ, length := wire.UnpackProtoHeader(hdr)
	if typ != wire.ProtoTypeAdmin {
		t.Fatalf("proto type = %v, want admin", typ)
	}

	body := frame[wire.ProtoHeaderSize:]
	if uint64(len(body)) != length {
		t.Fatalf("body length %d != declared %d", len(body), length)
	}
	if body[2] != loginCommand {
		t.Fatalf("command byte = %d, want %d", body[2], loginCommand)
	}
	if body[3] != 2 {
		t.Fatalf("field count = %d, want 2", body[3])
	}

	userField, n, err := wire.DecodeField(body[adminSubHeaderSize:])
	if err != nil {
		t.Fatalf("decoding user field: %v", err)
	}
	if userField.Type != adminFieldUser || string(userField.Body) != "bob" {
		t.Fatalf("user field = %+v", userField)
	}
	credField, _, err := wire.DecodeField(body[adminSubHeaderSize+n:])
	if err != nil {
		t.Fatalf("decoding credential field: %v", err)
	}
	if credField.Type != adminFieldCredential || string(credField.Body) != "hash" {
		t.Fatalf("credential field = %+v", credField)
	}
}

func TestAuthenticateSucceedsOnOk(t *testing.T) {
	conn := dialedConn(t, func(body []byte) []byte { return loginResponse(errkit.Ok) })
	auth := LoginAuthenticator{Username: "bob", CredentialHash: []byte("hash")}
	if err := auth.Authenticate(context.Background(), conn); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
}

func TestAuthenticateSucceedsOnSecurityNotEnabled(t *testing.T) {
	conn := dialedConn(t, func(body []byte) []byte { return loginResponse(errkit.SecurityNotEnabled) })
	auth := LoginAuthenticator{Username: "bob", CredentialHash: []byte("hash")}
	if err := auth.Authenticate(context.Background(), conn); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
}

func TestAuthenticateFailsOnOtherResultCode(t *testing.T) {
	conn := dialedConn(t, func(body []byte) []byte { return loginResponse(errkit.ResultCode(62)) })
	auth := LoginAuthenticator{Username: "bob", CredentialHash: []byte("hash")}
	err := auth.Authenticate(context.Background(), conn)
	if err == nil {
		t.Fatal("expected an authentication error")
	}
}
