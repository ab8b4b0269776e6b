// Package events defines the wire representation of inscription and block
// events exchanged over the broker.
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// InscriptionId is the genesis identifier of an inscription: its creation
// txid plus the index of the inscription within that transaction's reveal.
type InscriptionId struct {
	Txid  string
	Index uint32
}

func (id InscriptionId) String() string {
	return fmt.Sprintf("%si%d", id.Txid, id.Index)
}

// MarshalJSON encodes an InscriptionId as "<txid>i<index>".
func (id InscriptionId) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes "<txid>i<index>" back into an InscriptionId.
func (id *InscriptionId) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseInscriptionId(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseInscriptionId parses "<txid>i<index>" into an InscriptionId.
func ParseInscriptionId(s string) (InscriptionId, error) {
	sep := strings.LastIndex(s, "i")
	if sep < 0 {
		return InscriptionId{}, fmt.Errorf("events: malformed inscription id %q", s)
	}
	idx, err := strconv.ParseUint(s[sep+1:], 10, 32)
	if err != nil {
		return InscriptionId{}, fmt.Errorf("events: malformed inscription id %q: %w", s, err)
	}
	return InscriptionId{Txid: s[:sep], Index: uint32(idx)}, nil
}

// Outpoint identifies a specific transaction output.
type Outpoint struct {
	Txid string
	Vout uint32
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.Txid, o.Vout)
}

// SatPoint locates a satoshi within a transaction output.
type SatPoint struct {
	Outpoint Outpoint
	Offset   uint64
}

func (s SatPoint) String() string {
	return fmt.Sprintf("%s:%d", s.Outpoint, s.Offset)
}

// MarshalJSON encodes a SatPoint as "<txid>:<vout>:<offset>".
func (s SatPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes "<txid>:<vout>:<offset>" back into a SatPoint.
func (s *SatPoint) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseSatPoint(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSatPoint parses "<txid>:<vout>:<offset>" into a SatPoint.
func ParseSatPoint(s string) (SatPoint, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return SatPoint{}, fmt.Errorf("events: malformed satpoint %q", s)
	}
	vout, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return SatPoint{}, fmt.Errorf("events: malformed satpoint %q: %w", s, err)
	}
	offset, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return SatPoint{}, fmt.Errorf("events: malformed satpoint %q: %w", s, err)
	}
	return SatPoint{Outpoint: Outpoint{Txid: parts[0], Vout: uint32(vout)}, Offset: offset}, nil
}

// Kind discriminates the tagged union of wire events.
type Kind string

const (
	KindBlockCommitted         Kind = "BlockCommitted"
	KindInscriptionCreated     Kind = "InscriptionCreated"
	KindInscriptionTransferred Kind = "InscriptionTransferred"
	KindRuneBurned             Kind = "RuneBurned"
	KindRuneEtched             Kind = "RuneEtched"
	KindRuneMinted             Kind = "RuneMinted"
	KindRuneTransferred        Kind = "RuneTransferred"
)

// Event is the decoded form of a single broker message. Exactly one of the
// per-kind payload fields is populated, selected by Kind.
type Event struct {
	Kind Kind `json:"type"`

	// BlockCommitted
	Height uint32 `json:"height,omitempty"`

	// InscriptionCreated / InscriptionTransferred (shared)
	BlockHeight    uint32        `json:"block_height,omitempty"`
	InscriptionId  InscriptionId `json:"inscription_id,omitempty"`
	SequenceNumber uint32        `json:"sequence_number,omitempty"`

	// InscriptionCreated only
	Charms               uint16          `json:"charms,omitempty"`
	Location             *SatPoint       `json:"location,omitempty"`
	ParentInscriptionIds []InscriptionId `json:"parent_inscription_ids,omitempty"`

	// InscriptionTransferred only
	NewLocation SatPoint `json:"new_location,omitempty"`
	OldLocation SatPoint `json:"old_location,omitempty"`

	// Rune* variants are carried opaquely; the indexer does not interpret
	// their payload, only routes on Kind.
	Raw json.RawMessage `json:"-"`
}

// wireEnvelope matches the tagged-union encoding used on the wire: the
// discriminator and payload fields sit in a single flat JSON object keyed by
// "type".
type wireEnvelope struct {
	Type                 Kind            `json:"type"`
	Height               uint32          `json:"height,omitempty"`
	BlockHeight          uint32          `json:"block_height,omitempty"`
	InscriptionId        *InscriptionId  `json:"inscription_id,omitempty"`
	SequenceNumber       uint32          `json:"sequence_number,omitempty"`
	Charms               uint16          `json:"charms,omitempty"`
	Location             *SatPoint       `json:"location,omitempty"`
	ParentInscriptionIds []InscriptionId `json:"parent_inscription_ids,omitempty"`
	NewLocation          *SatPoint       `json:"new_location,omitempty"`
	OldLocation          *SatPoint       `json:"old_location,omitempty"`
}

// Serialize encodes an Event to its wire JSON form.
func Serialize(e Event) ([]byte, error) {
	w := wireEnvelope{
		Type:                 e.Kind,
		Height:               e.Height,
		BlockHeight:          e.BlockHeight,
		SequenceNumber:       e.SequenceNumber,
		Charms:               e.Charms,
		Location:             e.Location,
		ParentInscriptionIds: e.ParentInscriptionIds,
	}
	if e.InscriptionId != (InscriptionId{}) {
		id := e.InscriptionId
		w.InscriptionId = &id
	}
	if e.Kind == KindInscriptionTransferred {
		nl, ol := e.NewLocation, e.OldLocation
		w.NewLocation, w.OldLocation = &nl, &ol
	}
	return json.Marshal(w)
}

// Deserialize decodes an Event from its wire JSON form. Unrecognized or
// malformed payloads return an error; callers treat this as a poison
// message.
func Deserialize(data []byte) (Event, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("events: decode: %w", err)
	}
	if w.Type == "" {
		return Event{}, fmt.Errorf("events: missing type discriminator")
	}
	switch w.Type {
	case KindBlockCommitted, KindInscriptionCreated, KindInscriptionTransferred,
		KindRuneBurned, KindRuneEtched, KindRuneMinted, KindRuneTransferred:
	default:
		return Event{}, fmt.Errorf("events: unrecognized event type %q", w.Type)
	}
	e := Event{
		Kind:                 w.Type,
		Height:               w.Height,
		BlockHeight:          w.BlockHeight,
		SequenceNumber:       w.SequenceNumber,
		Charms:               w.Charms,
		Location:             w.Location,
		ParentInscriptionIds: w.ParentInscriptionIds,
		Raw:                  data,
	}
	if w.InscriptionId != nil {
		e.InscriptionId = *w.InscriptionId
	}
	if w.NewLocation != nil {
		e.NewLocation = *w.NewLocation
	}
	if w.OldLocation != nil {
		e.OldLocation = *w.OldLocation
	}
	return e, nil
}

// RoutingKey returns the broker routing key for an event, which is always
// its variant name verbatim.
func RoutingKey(e Event) string {
	return string(e.Kind)
}
