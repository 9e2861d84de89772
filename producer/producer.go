// Package producer answers Interests under a prefix with signed Data.
package producer

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	enc "github.com/zjkmxy/go-ndn/pkg/encoding"

	"github.com/go-ndn/consumer/face"
	"github.com/go-ndn/consumer/metrics"
	"github.com/go-ndn/consumer/packet"
)

// Face is the part of *face.Face the producer needs.
type Face interface {
	SetInterestFilter(enc.Name, face.InterestHandler) face.FilterID
	UnsetInterestFilter(face.FilterID)
	PutData(*packet.Data) error
	PutNack(*packet.Nack) error
}

type Config struct {
	Prefix    enc.Name
	Content   []byte
	Freshness time.Duration
	// CacheSize is the number of produced Data kept for reuse.
	CacheSize int
}

func DefaultConfig() Config {
	return Config{
		Prefix:    packet.MustParseName("/example/testApp"),
		Content:   []byte("Hello, world!"),
		Freshness: 10 * time.Second,
		CacheSize: 128,
	}
}

type entry struct {
	data    *packet.Data
	created time.Time
}

func (e entry) fresh(now time.Time) bool {
	return now.Sub(e.created) < e.data.Freshness
}

// Producer is not safe for concurrent use. Call it on the loop of the faces
// it is attached to.
type Producer struct {
	cfg     Config
	cache   *lru.Cache[string, entry]
	log     zerolog.Logger
	metrics metrics.ProducerMetrics
	now     func() time.Time

	reject *packet.NackReason
}

type Option func(*Producer)

func WithLogger(log zerolog.Logger) Option {
	return func(p *Producer) {
		p.log = log
	}
}

func WithMetrics(m metrics.ProducerMetrics) Option {
	return func(p *Producer) {
		p.metrics = m
	}
}

func New(cfg Config, opts ...Option) (*Producer, error) {
	cache, err := lru.New[string, entry](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create content store: %w", err)
	}
	p := &Producer{
		cfg:     cfg,
		cache:   cache,
		log:     zerolog.Nop(),
		metrics: metrics.NoopCollector{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With().Str("component", "producer").Stringer("prefix", cfg.Prefix).Logger()
	return p, nil
}

// Reject makes the producer answer every Interest with a Nack of reason.
func (p *Producer) Reject(reason packet.NackReason) {
	p.reject = &reason
}

// Accept undoes Reject.
func (p *Producer) Accept() {
	p.reject = nil
}

// Attach serves the prefix on f. Interests that fall outside it are answered
// with a NoRoute Nack. The returned function removes both filters.
func (p *Producer) Attach(f Face) (detach func()) {
	served := f.SetInterestFilter(p.cfg.Prefix, func(_ enc.Name, i *packet.Interest) {
		p.onInterest(f, i)
	})
	root := f.SetInterestFilter(nil, func(_ enc.Name, i *packet.Interest) {
		p.metrics.InterestReceived()
		p.nack(f, i, packet.NackReasonNoRoute)
	})
	return func() {
		f.UnsetInterestFilter(served)
		f.UnsetInterestFilter(root)
	}
}

func (p *Producer) onInterest(f Face, i *packet.Interest) {
	p.metrics.InterestReceived()
	if p.reject != nil {
		p.nack(f, i, *p.reject)
		return
	}

	now := p.now()
	key := i.Name.String()
	if e, ok := p.cache.Get(key); ok && (!i.MustBeFresh || e.fresh(now)) {
		p.metrics.CacheHit()
		p.log.Debug().Stringer("name", i.Name).Msg("answer from content store")
		p.put(f, e.data)
		return
	}

	d := p.produce(i.Name)
	p.cache.Add(key, entry{data: d, created: now})
	p.put(f, d)
}

func (p *Producer) produce(name enc.Name) *packet.Data {
	return &packet.Data{
		Name:      name,
		Freshness: p.cfg.Freshness,
		Content:   p.cfg.Content,
	}
}

func (p *Producer) put(f Face, d *packet.Data) {
	if err := f.PutData(d); err != nil {
		p.log.Warn().Err(err).Stringer("name", d.Name).Msg("could not send data")
		return
	}
	p.metrics.DataSent()
}

func (p *Producer) nack(f Face, i *packet.Interest, reason packet.NackReason) {
	n := &packet.Nack{Reason: reason, Interest: i}
	if err := f.PutNack(n); err != nil {
		p.log.Warn().Err(err).Stringer("interest", i).Msg("could not send nack")
		return
	}
	p.metrics.NackSent(reason.String())
	p.log.Debug().Stringer("interest", i).Stringer("reason", reason).Msg("nack sent")
}
