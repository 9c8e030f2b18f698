package event

import (
	"crypto/rand"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Identity is an agent's signing keypair, used to author events, plus the
// fixed fulfillment/condition pair the packet handler attaches to every
// fulfill packet: Condition is sha256(Fulfillment), minted once at boot.
type Identity struct {
	Priv *btcec.PrivateKey
	Pub  [32]byte

	Fulfillment [32]byte
	Condition   [32]byte
}

// NewIdentity generates a fresh signing keypair and a fresh
// fulfillment/condition pair.
func NewIdentity() (*Identity, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	id := IdentityFromPrivateKey(priv)
	if err := id.mintFulfillment(); err != nil {
		return nil, err
	}
	return id, nil
}

// IdentityFromPrivateKey derives an Identity from an existing key, e.g. one
// loaded from AGENT_PRIVKEY. The fulfillment/condition pair still needs to
// be minted (see mintFulfillment) before the identity is used to answer
// prepares.
func IdentityFromPrivateKey(priv *btcec.PrivateKey) *Identity {
	var pub [32]byte
	copy(pub[:], priv.PubKey().SerializeCompressed()[1:])
	return &Identity{Priv: priv, Pub: pub}
}

func (id *Identity) mintFulfillment() error {
	f, err := RandomBytes32()
	if err != nil {
		return err
	}
	id.Fulfillment = f
	id.Condition = sha256.Sum256(f[:])
	return nil
}

// EnsureFulfillment mints the fulfillment/condition pair if one hasn't
// already been set.
func (id *Identity) EnsureFulfillment() error {
	if id.Condition != ([32]byte{}) {
		return nil
	}
	return id.mintFulfillment()
}

// RandomBytes32 returns 32 cryptographically random bytes; used to mint the
// opaque fulfillment constant at boot.
func RandomBytes32() ([32]byte, error) {
	var b [32]byte
	_, err := rand.Read(b[:])
	return b, err
}
