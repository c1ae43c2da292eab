package hashweave

import (
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ed25519"

	"github.com/hashweave-network/hashweave/common"
)

// CryptoEngine covers the cryptographic primitives the intake core consumes.
type CryptoEngine interface {
	Digest(data []byte) common.EventID
	Sign(hash common.EventID) (common.Signature, error)
	Verify(hash common.EventID, sig common.Signature, key common.PublicKey) bool
}

// Ed25519Engine signs with an ed25519 key and digests with BLAKE2b-256.
type Ed25519Engine struct {
	priv ed25519.PrivateKey
}

func NewEd25519Engine(priv ed25519.PrivateKey) *Ed25519Engine {
	return &Ed25519Engine{priv: priv}
}

func (c *Ed25519Engine) PublicKey() common.PublicKey {
	var key common.PublicKey
	copy(key[:], c.priv.Public().(ed25519.PublicKey))
	return key
}

func (c *Ed25519Engine) Digest(data []byte) common.EventID {
	return blake2b.Sum256(data)
}

func (c *Ed25519Engine) Sign(hash common.EventID) (common.Signature, error) {
	var sig common.Signature
	copy(sig[:], ed25519.Sign(c.priv, hash[:]))
	return sig, nil
}

func (c *Ed25519Engine) Verify(hash common.EventID, sig common.Signature, key common.PublicKey) bool {
	return ed25519.Verify(ed25519.PublicKey(key[:]), hash[:], sig[:])
}
