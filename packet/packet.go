// Package packet holds the Interest, Data and network Nack values exchanged
// by a face. The wire format is NDN packet format v0.3 with NDNLPv2 framing,
// encoded and parsed by go-ndn's spec_2022.
package packet

import (
	"errors"
	"fmt"
	"time"

	enc "github.com/zjkmxy/go-ndn/pkg/encoding"
	spec "github.com/zjkmxy/go-ndn/pkg/ndn/spec_2022"
)

const (
	TypeInterest enc.TLNum = 0x05
	TypeData     enc.TLNum = 0x06
	TypeLpPacket enc.TLNum = 0x64
)

// DefaultLifetime applies when an Interest carries no InterestLifetime.
const DefaultLifetime = 4 * time.Second

var (
	ErrUnexpectedType = errors.New("packet: unexpected type")
	ErrEmpty          = errors.New("packet: empty frame")
	ErrNackFragment   = errors.New("packet: nack does not carry an interest")
)

// Packet is implemented by *Interest, *Data and *Nack.
type Packet interface {
	Encode() (enc.Wire, error)
}

// MustParseName parses a name URI and panics on error. It is meant for
// constants.
func MustParseName(s string) enc.Name {
	n, err := enc.NameFromStr(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Key splits n into the per-component keys used by prefix tables.
func Key(n enc.Name) []string {
	key := make([]string, len(n))
	for i, c := range n {
		key[i] = c.String()
	}
	return key
}

// IsPrefix reports whether prefix is a prefix of n, or n itself.
func IsPrefix(prefix, n enc.Name) bool {
	return len(prefix) <= len(n) && prefix.IsPrefix(n)
}

// Equal reports whether a and b name the same thing.
func Equal(a, b enc.Name) bool {
	return len(a) == len(b) && a.IsPrefix(b)
}

// DecodePacket decodes one frame read from a face. LpPackets are unwrapped; a
// fragment-less LpPacket (an idle packet) yields a nil Packet and a nil error.
func DecodePacket(frame []byte) (Packet, error) {
	if len(frame) == 0 {
		return nil, ErrEmpty
	}
	typ, _ := enc.ParseTLNum(enc.Buffer(frame))
	switch typ {
	case TypeInterest:
		i, err := decodeInterest(frame)
		if err != nil {
			return nil, err
		}
		return i, nil
	case TypeData:
		d, err := decodeData(frame)
		if err != nil {
			return nil, err
		}
		return d, nil
	case TypeLpPacket:
		return decodeLpPacket(frame)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedType, typ)
	}
}

func decodeLpPacket(frame []byte) (Packet, error) {
	pkt, _, err := spec.ReadPacket(enc.NewBufferReader(frame))
	if err != nil {
		return nil, fmt.Errorf("could not parse lp packet: %w", err)
	}
	lp := pkt.LpPacket
	if lp == nil {
		return nil, fmt.Errorf("%w: lp packet expected", ErrUnexpectedType)
	}
	inner := lp.Fragment.Join()
	if len(inner) == 0 {
		return nil, nil
	}
	p, err := DecodePacket(inner)
	if err != nil {
		return nil, err
	}
	if lp.Nack == nil {
		return p, nil
	}
	i, ok := p.(*Interest)
	if !ok {
		return nil, ErrNackFragment
	}
	return &Nack{Reason: NackReason(lp.Nack.Reason), Interest: i}, nil
}
