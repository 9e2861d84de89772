package packet

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	enc "github.com/zjkmxy/go-ndn/pkg/encoding"
	"github.com/zjkmxy/go-ndn/pkg/ndn"
	spec "github.com/zjkmxy/go-ndn/pkg/ndn/spec_2022"
	sec "github.com/zjkmxy/go-ndn/pkg/security"
	"github.com/zjkmxy/go-ndn/pkg/utils"
)

func sigTypeString(t ndn.SigType) string {
	switch t {
	case ndn.SignatureNone:
		return "None"
	case ndn.SignatureDigestSha256:
		return "DigestSha256"
	case ndn.SignatureSha256WithRsa:
		return "SignatureSha256WithRsa"
	case ndn.SignatureSha256WithEcdsa:
		return "SignatureSha256WithEcdsa"
	case ndn.SignatureHmacWithSha256:
		return "SignatureHmacWithSha256"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// Data is signed with DigestSha256 when encoded. SigType and SigValue are
// filled in by Encode and by decoding.
type Data struct {
	Name         enc.Name
	ContentType  ndn.ContentType
	Freshness    time.Duration
	FinalBlockID *enc.Component
	Content      []byte

	SigType  ndn.SigType
	SigValue []byte

	sigCovered enc.Wire
}

func (d *Data) config() *ndn.DataConfig {
	config := &ndn.DataConfig{
		ContentType:  utils.IdPtr(d.ContentType),
		FinalBlockID: d.FinalBlockID,
	}
	if d.Freshness > 0 {
		config.Freshness = utils.IdPtr(d.Freshness)
	}
	return config
}

// Encode signs d with DigestSha256 and returns its wire.
func (d *Data) Encode() (enc.Wire, error) {
	ed, err := spec.Spec{}.MakeData(d.Name, d.config(), enc.Wire{d.Content}, sec.NewSha256Signer())
	if err != nil {
		return nil, fmt.Errorf("could not encode data %s: %w", d.Name, err)
	}
	sum := sha256.Sum256(ed.SigCovered.Join())
	d.SigType = ndn.SignatureDigestSha256
	d.SigValue = sum[:]
	d.sigCovered = ed.SigCovered
	return ed.Wire, nil
}

// VerifyDigest reports whether a DigestSha256 signature matches the signed
// portion. It is false for Data that was neither encoded nor decoded.
func (d *Data) VerifyDigest() bool {
	if d.SigType != ndn.SignatureDigestSha256 || d.sigCovered == nil {
		return false
	}
	sum := sha256.Sum256(d.sigCovered.Join())
	return bytes.Equal(sum[:], d.SigValue)
}

func (d *Data) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Name: %s\n", d.Name)
	fmt.Fprintf(&sb, "MetaInfo: [ContentType: %d", d.ContentType)
	if d.Freshness > 0 {
		fmt.Fprintf(&sb, ", FreshnessPeriod: %d milliseconds", d.Freshness.Milliseconds())
	}
	if d.FinalBlockID != nil {
		fmt.Fprintf(&sb, ", FinalBlockId: %s", d.FinalBlockID)
	}
	sb.WriteString("]\n")
	fmt.Fprintf(&sb, "Content: (size: %d)\n", len(d.Content))
	fmt.Fprintf(&sb, "Signature: (type: %s, value_length: %d)\n", sigTypeString(d.SigType), len(d.SigValue))
	return sb.String()
}

func decodeData(frame []byte) (*Data, error) {
	pd, sigCovered, err := spec.Spec{}.ReadData(enc.NewBufferReader(frame))
	if err != nil {
		return nil, fmt.Errorf("could not parse data: %w", err)
	}
	d := &Data{
		Name:         pd.Name(),
		FinalBlockID: pd.FinalBlockID(),
		Content:      pd.Content().Join(),
		SigType:      ndn.SignatureNone,
		sigCovered:   sigCovered,
	}
	if ct := pd.ContentType(); ct != nil {
		d.ContentType = *ct
	}
	if f := pd.Freshness(); f != nil {
		d.Freshness = *f
	}
	if sig := pd.Signature(); sig != nil {
		d.SigType = sig.SigType()
		d.SigValue = sig.SigValue()
	}
	return d, nil
}
