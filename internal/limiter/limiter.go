// Package limiter locks out peers that keep presenting bad bearer tokens.
package limiter

import (
	"context"
	"crypto/sha256"
	"net"
	"time"
)

// Limiter counts failed authentications per peer and places temporary blocks.
type Limiter interface {
	// Allow reports whether the peer may try to authenticate and, if not, for how long it is blocked.
	Allow(ctx context.Context, peer []byte) (bool, time.Duration, error)
	// Failure records a failed attempt; it reports whether the peer is now blocked.
	Failure(ctx context.Context, peer []byte) (bool, time.Duration, error)
}

// HashPeer returns a stable hash of the host part of a network address so raw
// addresses are never stored. Addresses without a port are hashed whole.
func HashPeer(addr string) []byte {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	h := sha256.Sum256([]byte(addr))
	return h[:]
}
