package netpool

import (
	"bytes"
	"crypto/rand"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// fixedSalt is the constant 16-byte salt spec §4.3 requires for credential
// hashing: every client hashes every password with exactly this salt, so two
// clients configured with the same password always send the same
// credential bytes.
var fixedSalt = [16]byte{0xf4, 0x6b, 0x0b, 0xbe, 0xcf, 0xfe, 0x8d, 0x1b, 0x06, 0x67, 0xd8, 0x4f, 0x6d, 0xc1, 0xd8, 0xa9}

const bcryptCost = 10

// randMu serializes the temporary swap of crypto/rand.Reader below; bcrypt's
// public API has no salt parameter, so supplying a fixed salt means feeding
// it through the package-level rand.Reader for the duration of one call.
var randMu sync.Mutex

// HashCredential derives the bcrypt credential bytes sent in a Login field,
// per spec §4.3: cost 10, the fixed salt above, computed once per
// configuration rather than once per connection.
func HashCredential(password string) ([]byte, error) {
	randMu.Lock()
	defer randMu.Unlock()

	saved := rand.Reader
	rand.Reader = bytes.NewReader(fixedSalt[:])
	defer func() { rand.Reader = saved }()

	return bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
}
