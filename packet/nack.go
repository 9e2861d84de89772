package packet

import (
	"fmt"
	"strconv"

	enc "github.com/zjkmxy/go-ndn/pkg/encoding"
	spec "github.com/zjkmxy/go-ndn/pkg/ndn/spec_2022"
)

type NackReason uint64

const (
	NackReasonNone       NackReason = 0
	NackReasonCongestion NackReason = 50
	NackReasonDuplicate  NackReason = 100
	NackReasonNoRoute    NackReason = 150
)

func (r NackReason) String() string {
	switch r {
	case NackReasonNone:
		return "None"
	case NackReasonCongestion:
		return "Congestion"
	case NackReasonDuplicate:
		return "Duplicate"
	case NackReasonNoRoute:
		return "NoRoute"
	default:
		return strconv.FormatUint(uint64(r), 10)
	}
}

// ParseNackReason accepts the names printed by String, or a number.
func ParseNackReason(s string) (NackReason, error) {
	for _, r := range []NackReason{NackReasonNone, NackReasonCongestion, NackReasonDuplicate, NackReasonNoRoute} {
		if s == r.String() {
			return r, nil
		}
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown nack reason %q", s)
	}
	return NackReason(v), nil
}

// Nack is a network Nack: an LpPacket carrying the rejected Interest.
type Nack struct {
	Reason   NackReason
	Interest *Interest
}

func (n *Nack) Encode() (enc.Wire, error) {
	fragment, err := n.Interest.Encode()
	if err != nil {
		return nil, err
	}
	pkt := &spec.Packet{
		LpPacket: &spec.LpPacket{
			Nack:     &spec.NetworkNack{Reason: uint64(n.Reason)},
			Fragment: fragment,
		},
	}
	encoder := spec.PacketEncoder{}
	encoder.Init(pkt)
	return encoder.Encode(pkt), nil
}

func (n *Nack) String() string {
	return fmt.Sprintf("Nack(%s) %s", n.Reason, n.Interest)
}
