package integrity

import (
	"crypto/ed25519"
	"fmt"
	"hash/crc32"

	"github.com/ValentinKolb/nvboot/lib/nvram"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("integrity")

// --------------------------------------------------------------------------
// Checksum
// --------------------------------------------------------------------------

// Checksum returns the IEEE CRC-32 of blob, the sum stored in platform and
// store headers.
func Checksum(blob []byte) uint32 {
	return crc32.ChecksumIEEE(blob)
}

// VerifyChecksum recomputes the checksum of blob and compares it to expected.
func VerifyChecksum(blob []byte, expected uint32) error {
	if sum := Checksum(blob); sum != expected {
		failure(nvram.RetCChecksumMismatch)
		return nvram.NewError(nvram.RetCChecksumMismatch, "blob",
			fmt.Sprintf("stored 0x%08x, computed 0x%08x", expected, sum))
	}
	return nil
}

// --------------------------------------------------------------------------
// Signatures
// --------------------------------------------------------------------------

// Signature describes a detached signature over an image.
type Signature struct {
	// KeyName identifies the key the image was signed with. Informational.
	KeyName string
	// Value is the raw signature.
	Value []byte
}

// Verifier checks a detached signature. Implementations wrap the platform's
// cryptographic collaborator.
type Verifier interface {
	Verify(image []byte, sig Signature) bool
}

// Ed25519Verifier verifies signatures with a single ed25519 public key.
type Ed25519Verifier struct {
	PublicKey ed25519.PublicKey
}

// NewEd25519Verifier returns a verifier for key. The key must be
// ed25519.PublicKeySize bytes long.
func NewEd25519Verifier(key []byte) (*Ed25519Verifier, error) {
	if len(key) != ed25519.PublicKeySize {
		return nil, nvram.NewError(nvram.RetCInvalidLength, "public key",
			fmt.Sprintf("got %d bytes, need %d", len(key), ed25519.PublicKeySize))
	}
	return &Ed25519Verifier{PublicKey: ed25519.PublicKey(key)}, nil
}

func (v *Ed25519Verifier) Verify(image []byte, sig Signature) bool {
	if len(sig.Value) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(v.PublicKey, image, sig.Value)
}

// VerifySignature delegates to v and maps a rejection to AuthenticationFailed.
func VerifySignature(v Verifier, image []byte, sig Signature) error {
	if !v.Verify(image, sig) {
		failure(nvram.RetCAuthenticationFailed)
		return nvram.NewError(nvram.RetCAuthenticationFailed, "signature",
			fmt.Sprintf("key %q rejected image of %d bytes", sig.KeyName, len(image)))
	}
	return nil
}

// --------------------------------------------------------------------------
// Gate
// --------------------------------------------------------------------------

// Gate runs every configured check on a blob before it is decoded.
// A zero Gate only verifies the checksum.
type Gate struct {
	// Verifier, when set, makes a valid signature mandatory.
	Verifier Verifier
}

// Check verifies the checksum and then, when a verifier is configured, the
// signature. sig may be nil only if no verifier is configured.
func (g Gate) Check(blob []byte, expected uint32, sig *Signature) error {
	if err := VerifyChecksum(blob, expected); err != nil {
		log.Errorf("checksum verification failed: %v", err)
		return err
	}
	if g.Verifier == nil {
		return nil
	}
	if sig == nil {
		failure(nvram.RetCAuthenticationFailed)
		log.Errorf("image is not signed but a verifier is configured")
		return nvram.NewError(nvram.RetCAuthenticationFailed, "signature", "missing")
	}
	if err := VerifySignature(g.Verifier, blob, *sig); err != nil {
		log.Errorf("signature verification failed: %v", err)
		return err
	}
	log.Debugf("blob of %d bytes verified with key %q", len(blob), sig.KeyName)
	return nil
}

func failure(code nvram.RetCode) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`nvboot_integrity_failures_total{kind=%q}`, code.String())).Inc()
}
