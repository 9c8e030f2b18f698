// Package event implements the social-graph event that travels inside every
// packet payload: a Nostr-shaped (NIP-01) record with a deterministic id and
// an author signature.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/go-errors/errors"
)

// Tag is an ordered list of strings; by convention the first element names
// the tag.
type Tag []string

// Name returns the tag's first element, or "" for an empty tag.
func (t Tag) Name() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns the tag element at index i, or "" if it doesn't exist.
func (t Tag) Value(i int) string {
	if i < 0 || i >= len(t) {
		return ""
	}
	return t[i]
}

// Tags is an ordered list of Tag.
type Tags []Tag

// Find returns the first tag with the given name, and whether one exists.
func (t Tags) Find(name string) (Tag, bool) {
	for _, tag := range t {
		if tag.Name() == name {
			return tag, true
		}
	}
	return nil, false
}

// FindAll returns every tag with the given name, in order.
func (t Tags) FindAll(name string) []Tag {
	var out []Tag
	for _, tag := range t {
		if tag.Name() == name {
			out = append(out, tag)
		}
	}
	return out
}

// Event is the unit wrapped inside a packet. Finalize fills in ID and Sign
// fills in Sig; nothing else in this package changes an Event's fields.
type Event struct {
	ID        [32]byte `json:"id"`
	PubKey    [32]byte `json:"pubkey"`
	CreatedAt int64    `json:"created_at"`
	Kind      int      `json:"kind"`
	Tags      Tags     `json:"tags"`
	Content   string   `json:"content"`
	Sig       [64]byte `json:"sig"`
}

// canonical returns the NIP-01 serialization used to derive an event's id:
// [0, pubkey, created_at, kind, tags, content], with pubkey/tags/content
// exactly as they'll be transmitted.
func (e *Event) canonical() ([]byte, error) {
	arr := []interface{}{
		0,
		hex.EncodeToString(e.PubKey[:]),
		e.CreatedAt,
		e.Kind,
		e.Tags,
		e.Content,
	}
	return json.Marshal(arr)
}

// ComputeID derives the deterministic id for the event's current fields.
func (e *Event) ComputeID() ([32]byte, error) {
	payload, err := e.canonical()
	if err != nil {
		return [32]byte{}, errors.WrapPrefix(err, "canonical serialization", 0)
	}
	return sha256.Sum256(payload), nil
}

// Finalize computes and sets the event's id. Call once all other fields are
// set and before signing.
func (e *Event) Finalize() error {
	id, err := e.ComputeID()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// Sign finalizes the id (if not already matching) and produces a schnorr
// signature over it using the author's private key, setting e.Sig.
func (e *Event) Sign(priv *btcec.PrivateKey) error {
	if err := e.Finalize(); err != nil {
		return err
	}
	sig, err := schnorr.Sign(priv, e.ID[:])
	if err != nil {
		return errors.WrapPrefix(err, "sign event", 0)
	}
	copy(e.Sig[:], sig.Serialize())
	return nil
}

// Verify checks that the id is the correct hash of the event's fields and
// that Sig is a valid schnorr signature over that id by PubKey.
func (e *Event) Verify() error {
	wantID, err := e.ComputeID()
	if err != nil {
		return err
	}
	if wantID != e.ID {
		return errors.New("event id does not match its contents")
	}

	pub, err := schnorr.ParsePubKey(e.PubKey[:])
	if err != nil {
		return errors.WrapPrefix(err, "parse author pubkey", 0)
	}
	sig, err := schnorr.ParseSignature(e.Sig[:])
	if err != nil {
		return errors.WrapPrefix(err, "parse signature", 0)
	}
	if !sig.Verify(e.ID[:], pub) {
		return errors.New("signature does not verify against author pubkey")
	}
	return nil
}

// TagCounts returns a deterministic name->count summary of the event's tags.
func (e *Event) TagCounts() map[string]int {
	counts := make(map[string]int)
	for _, tag := range e.Tags {
		counts[tag.Name()]++
	}
	return counts
}
