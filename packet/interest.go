package packet

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	enc "github.com/zjkmxy/go-ndn/pkg/encoding"
	"github.com/zjkmxy/go-ndn/pkg/ndn"
	spec "github.com/zjkmxy/go-ndn/pkg/ndn/spec_2022"
	"github.com/zjkmxy/go-ndn/pkg/utils"
)

type Interest struct {
	Name        enc.Name
	CanBePrefix bool
	MustBeFresh bool
	// Nonce holds a 32-bit value once set; nil means the face will pick one.
	Nonce    *uint64
	Lifetime time.Duration
	HopLimit *uint

	AppParam []byte
}

func NewInterest(name enc.Name) *Interest {
	return &Interest{Name: name}
}

// RefreshNonce replaces the nonce with a different random value.
func (i *Interest) RefreshNonce() {
	buf := make([]byte, 4)
	for {
		if _, err := rand.Read(buf); err != nil {
			panic(err)
		}
		nonce := utils.ConvertNonce(buf)
		if i.Nonce == nil || *nonce != *i.Nonce {
			i.Nonce = nonce
			return
		}
	}
}

// LifetimeOrDefault returns the lifetime the face should wait for.
func (i *Interest) LifetimeOrDefault() time.Duration {
	if i.Lifetime <= 0 {
		return DefaultLifetime
	}
	return i.Lifetime
}

// MatchesData reports whether d can satisfy i. Freshness is not checked.
func (i *Interest) MatchesData(d *Data) bool {
	if i.CanBePrefix {
		return IsPrefix(i.Name, d.Name)
	}
	return Equal(i.Name, d.Name)
}

// Clone returns a copy that shares no mutable state with i.
func (i *Interest) Clone() *Interest {
	cp := *i
	cp.Name = append(enc.Name(nil), i.Name...)
	if i.Nonce != nil {
		cp.Nonce = utils.IdPtr(*i.Nonce)
	}
	if i.HopLimit != nil {
		cp.HopLimit = utils.IdPtr(*i.HopLimit)
	}
	if i.AppParam != nil {
		cp.AppParam = append([]byte(nil), i.AppParam...)
	}
	return &cp
}

func (i *Interest) String() string {
	var opts []string
	if i.CanBePrefix {
		opts = append(opts, "CanBePrefix")
	}
	if i.MustBeFresh {
		opts = append(opts, "MustBeFresh")
	}
	if i.Nonce != nil {
		opts = append(opts, fmt.Sprintf("Nonce=%08x", *i.Nonce))
	}
	if i.Lifetime > 0 {
		opts = append(opts, fmt.Sprintf("Lifetime=%d", i.Lifetime.Milliseconds()))
	}
	if i.HopLimit != nil {
		opts = append(opts, fmt.Sprintf("HopLimit=%d", *i.HopLimit))
	}
	if len(opts) == 0 {
		return i.Name.String()
	}
	return i.Name.String() + "?" + strings.Join(opts, "&")
}

func (i *Interest) config() *ndn.InterestConfig {
	config := &ndn.InterestConfig{
		CanBePrefix: i.CanBePrefix,
		MustBeFresh: i.MustBeFresh,
		Nonce:       i.Nonce,
		HopLimit:    i.HopLimit,
	}
	if i.Lifetime > 0 {
		config.Lifetime = utils.IdPtr(i.Lifetime)
	}
	return config
}

// Encode returns the Interest wire. With AppParam set, the encoder appends a
// ParametersSha256Digest component, and Name is updated to that final name.
func (i *Interest) Encode() (enc.Wire, error) {
	var appParam enc.Wire
	if i.AppParam != nil {
		appParam = enc.Wire{i.AppParam}
	}
	ei, err := spec.Spec{}.MakeInterest(i.Name, i.config(), appParam, nil)
	if err != nil {
		return nil, fmt.Errorf("could not encode interest %s: %w", i.Name, err)
	}
	i.Name = ei.FinalName
	return ei.Wire, nil
}

func decodeInterest(frame []byte) (*Interest, error) {
	pi, _, err := spec.Spec{}.ReadInterest(enc.NewBufferReader(frame))
	if err != nil {
		return nil, fmt.Errorf("could not parse interest: %w", err)
	}
	i := &Interest{
		Name:        pi.Name(),
		CanBePrefix: pi.CanBePrefix(),
		MustBeFresh: pi.MustBeFresh(),
		Nonce:       pi.Nonce(),
		HopLimit:    pi.HopLimit(),
	}
	if lt := pi.Lifetime(); lt != nil {
		i.Lifetime = *lt
	}
	if ap := pi.AppParam(); ap != nil {
		i.AppParam = ap.Join()
	}
	return i, nil
}
