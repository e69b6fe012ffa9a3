/**
 * @description
 * Credential encoding for the portal login. The portal ships its own
 * obfuscation routine together with the key material it needs; this package
 * treats both as opaque and only guarantees how they are fetched, cached and
 * invoked.
 */
package encoder

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nguyenkhoa0721/lookup-bank/internal/domain"
)

// Encoder is the portal-supplied routine: plaintext + key material + key version → ciphertext.
type Encoder interface {
	Encode(ctx context.Context, payload, keyMaterial []byte, version string) (string, error)
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(ctx context.Context, payload, keyMaterial []byte, version string) (string, error)

func (f EncoderFunc) Encode(ctx context.Context, payload, keyMaterial []byte, version string) (string, error) {
	return f(ctx, payload, keyMaterial, version)
}

// KeyFetcher downloads the key material blob.
type KeyFetcher interface {
	FetchKeyMaterial(ctx context.Context) ([]byte, error)
}

// KeyFetcherFunc adapts a function to KeyFetcher.
type KeyFetcherFunc func(ctx context.Context) ([]byte, error)

func (f KeyFetcherFunc) FetchKeyMaterial(ctx context.Context) ([]byte, error) { return f(ctx) }

// KeyStore caches key material for the process lifetime. Concurrent first use
// results in a single download; a failed download leaves the store empty so the
// next caller tries again.
type KeyStore struct {
	fetcher  KeyFetcher
	mu       sync.Mutex
	material []byte
}

// NewKeyStore creates an empty KeyStore.
func NewKeyStore(fetcher KeyFetcher) *KeyStore {
	return &KeyStore{fetcher: fetcher}
}

// Get returns the cached key material, fetching it if absent.
func (k *KeyStore) Get(ctx context.Context) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.material != nil {
		return k.material, nil
	}
	material, err := k.fetcher.FetchKeyMaterial(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch key material: %w", err)
	}
	if len(material) == 0 {
		return nil, errors.New("fetch key material: empty response")
	}
	k.material = material
	return material, nil
}

// Invalidate drops the cached key material so the next Get fetches it again.
func (k *KeyStore) Invalidate() {
	k.mu.Lock()
	k.material = nil
	k.mu.Unlock()
}

// MaterialChecker is implemented by encoders that can validate key material
// without encoding anything.
type MaterialChecker interface {
	Check(keyMaterial []byte) error
}

// HashPassword returns the lowercase hex MD5 digest the portal expects.
// This is a wire format requirement, not a password storage scheme.
func HashPassword(password string) string {
	sum := md5.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

// CredentialEncoder produces the dataEnc field of a login request.
type CredentialEncoder struct {
	encoder Encoder
	keys    *KeyStore
	version string
}

// NewCredentialEncoder wires an Encoder to a KeyStore.
func NewCredentialEncoder(encoder Encoder, keys *KeyStore, version string) *CredentialEncoder {
	return &CredentialEncoder{encoder: encoder, keys: keys, version: version}
}

// Encode serializes payload and runs it through the portal routine.
func (c *CredentialEncoder) Encode(ctx context.Context, payload domain.LoginPayload) (string, error) {
	keyMaterial, err := c.keys.Get(ctx)
	if err != nil {
		return "", err
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal login payload: %w", err)
	}
	ciphertext, err := c.encoder.Encode(ctx, plaintext, keyMaterial, c.version)
	if err != nil {
		if errors.Is(err, ErrInvalidKeyMaterial) {
			c.keys.Invalidate()
		}
		return "", fmt.Errorf("encode login payload: %w", err)
	}
	if ciphertext == "" {
		return "", errors.New("encode login payload: empty ciphertext")
	}
	return ciphertext, nil
}

// Verify fetches the key material and, when the encoder supports it, checks
// that it loads. Unusable material is dropped from the store.
func (c *CredentialEncoder) Verify(ctx context.Context) error {
	keyMaterial, err := c.keys.Get(ctx)
	if err != nil {
		return err
	}
	checker, ok := c.encoder.(MaterialChecker)
	if !ok {
		return nil
	}
	if err := checker.Check(keyMaterial); err != nil {
		c.keys.Invalidate()
		return err
	}
	return nil
}
