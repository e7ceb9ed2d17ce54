package info

import (
	"context"
	"fmt"
	"io"

	"github.com/aerokit-io/aerokit/errkit"
	"github.com/aerokit-io/aerokit/internal/netpool"
	"github.com/aerokit-io/aerokit/internal/wire"
)

// adminSubHeaderSize is the 16-byte remainder of the 24-byte admin message
// header that follows the shared 8-byte proto header: two reserved bytes, a
// command byte, a field-count byte, and 12 reserved bytes (spec §4.3,
// grounded on original_source/src/commands/admin_command.rs's HEADER_SIZE).
const adminSubHeaderSize = 16

const loginCommand = 20

// admin field ids, scoped to the Login command only; distinct from
// wire.FieldType's data-operation catalog.
const (
	adminFieldUser       wire.FieldType = 0
	adminFieldCredential wire.FieldType = 3
)

// LoginAuthenticator performs the Login admin-command handshake spec §4.3
// requires on every freshly dialed connection when credentials are
// configured: an 8-byte proto header (type=2), a 16-byte admin sub-header
// naming command 20 with two fields, and a result code read back from the
// equivalent response header. A result of Ok or SecurityNotEnabled both
// complete the handshake successfully (errkit.ResultCode.AuthOk).
type LoginAuthenticator struct {
	Username       string
	CredentialHash []byte
}

// Authenticate implements netpool.Authenticator.
func (a LoginAuthenticator) Authenticate(ctx context.Context, conn *netpool.Conn) error {
	frame := buildLoginMessage(a.Username, a.CredentialHash)

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err := conn.Write(frame); err != nil {
		return errkit.NewIO("writing login request", err)
	}

	code, trailerLen, err := readLoginHeader(conn)
	if err != nil {
		return err
	}
	if trailerLen > 0 {
		trailer := make([]byte, trailerLen)
		if _, err := io.ReadFull(conn, trailer); err != nil {
			return errkit.NewAuthentication("reading login response trailer", err)
		}
	}
	if !code.AuthOk() {
		return errkit.NewAuthentication(fmt.Sprintf("login failed: %s", code), nil)
	}
	return nil
}

// buildLoginMessage frames the Login(20) admin command with User and
// Credential fields, encoded with the same size||type||body layout as a
// data-operation field record.
func buildLoginMessage(username string, credential []byte) []byte {
	userField := wire.NewField(adminFieldUser, []byte(username))
	credField := wire.NewField(adminFieldCredential, credential)

	bodyLen := adminSubHeaderSize + userField.Size() + credField.Size()
	hdr := wire.PackProtoHeader(wire.ProtoTypeAdmin, uint64(bodyLen))

	out := make([]byte, 0, wire.ProtoHeaderSize+bodyLen)
	out = append(out, hdr[:]...)
	out = append(out, 0, 0, loginCommand, 2) // two reserved bytes, command, field count
	out = append(out, make([]byte, 12)...)   // reserved
	out = userField.Encode(out)
	out = credField.Encode(out)
	return out
}

// readLoginHeader reads the 24-byte admin response header and returns the
// result code (at byte offset 9, mirroring the request's sub-header layout)
// and the length of the trailing bytes still to be discarded.
func readLoginHeader(conn *netpool.Conn) (errkit.ResultCode, int, error) {
	var proto [wire.ProtoHeaderSize]byte
	if _, err := io.ReadFull(conn, proto[:]); err != nil {
		return 0, 0, errkit.NewAuthentication("reading login response header", err)
	}
	_, length := wire.UnpackProtoHeader(proto)
	if length < adminSubHeaderSize {
		return 0, 0, errkit.NewAuthentication("short login response header", nil)
	}

	var sub [adminSubHeaderSize]byte
	if _, err := io.ReadFull(conn, sub[:]); err != nil {
		return 0, 0, errkit.NewAuthentication("reading login response sub-header", err)
	}

	code := errkit.ResultCode(sub[1])
	trailerLen := int(length) - adminSubHeaderSize
	return code, trailerLen, nil
}
