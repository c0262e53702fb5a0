// Package clientcrypto seals remote record bodies on the client so the replica
// only ever stores ciphertext.
package clientcrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/and161185/clipsync/internal/model"
)

// Params
const (
	KeyLen = 32

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1

	// sealedV1 prefixes every sealed body; plaintext JSON bodies start with '{'.
	sealedV1 byte = 0x01
)

// ErrNotSealed is returned by Open for a body that was stored in plaintext.
var ErrNotSealed = errors.New("record body is not sealed")

func Rand(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// DeriveKey derives the sealing root key from a passphrase and salt using Argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, KeyLen)
}

// deriveRecordKey derives a per-record key via HKDF-SHA256 using kind||0||id as info.
func deriveRecordKey(root []byte, kind model.Kind, id string) ([]byte, error) {
	r := hkdf.New(sha256.New, root, nil, recordInfo(kind, id))
	key := make([]byte, KeyLen)
	_, err := r.Read(key)
	return key, err
}

func recordInfo(kind model.Kind, id string) []byte {
	info := make([]byte, 0, len(kind)+1+len(id))
	info = append(info, kind...)
	info = append(info, 0)
	info = append(info, id...)
	return info
}

// IsSealed reports whether body carries the sealed envelope.
func IsSealed(body []byte) bool { return len(body) > 0 && body[0] == sealedV1 }

// Sealer encrypts and authenticates record bodies bound to their kind and id,
// so a body cannot be replayed under another record.
type Sealer struct {
	root []byte
}

// NewSealer derives the root key; build one per process and share it.
func NewSealer(passphrase, salt []byte) *Sealer {
	return &Sealer{root: DeriveKey(passphrase, salt)}
}

// Seal encrypts plaintext with XChaCha20-Poly1305 and a random nonce.
// Layout: version(1) || nonce(24) || ciphertext.
func (s *Sealer) Seal(kind model.Kind, id string, plaintext []byte) ([]byte, error) {
	key, err := deriveRecordKey(s.root, kind, id)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce, err := Rand(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, sealedV1)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, recordInfo(kind, id))
	return out, nil
}

// Open decrypts a body produced by Seal for the same kind and id.
func (s *Sealer) Open(kind model.Kind, id string, body []byte) ([]byte, error) {
	if !IsSealed(body) {
		return nil, ErrNotSealed
	}
	body = body[1:]
	if len(body) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("sealed body too short")
	}
	key, err := deriveRecordKey(s.root, kind, id)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := body[:chacha20poly1305.NonceSizeX]
	ct := body[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, ct, recordInfo(kind, id))
}
