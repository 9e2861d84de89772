// Package consumer sends an Interest, prints what comes back, and sends one
// more Interest after a delay, all on a single event loop.
package consumer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/go-ndn/consumer/face"
	"github.com/go-ndn/consumer/metrics"
	"github.com/go-ndn/consumer/packet"
	"github.com/go-ndn/consumer/sched"
)

// Face is the part of *face.Face the consumer needs.
type Face interface {
	ExpressInterest(*packet.Interest, face.DataCallback, face.NackCallback, face.TimeoutCallback) (face.PendingID, error)
}

type Consumer struct {
	face    Face
	loop    *sched.Loop
	sched   *sched.Scheduler
	out     io.Writer
	log     zerolog.Logger
	metrics metrics.ConsumerMetrics
	cfg     Config

	outcomes int
}

type Option func(*Consumer)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Consumer) {
		c.log = log
	}
}

func WithMetrics(m metrics.ConsumerMetrics) Option {
	return func(c *Consumer) {
		c.metrics = m
	}
}

// New creates a consumer that prints to out. f must deliver its callbacks on
// loop, and s must be bound to loop.
func New(f Face, loop *sched.Loop, s *sched.Scheduler, out io.Writer, cfg Config, opts ...Option) *Consumer {
	c := &Consumer{
		face:    f,
		loop:    loop,
		sched:   s,
		out:     out,
		log:     zerolog.Nop(),
		metrics: metrics.NoopCollector{},
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "consumer").Logger()
	return c
}

// Run sends the first Interest, schedules the delayed one, and processes
// events until none are left, the limit is reached, or ctx ends.
func (c *Consumer) Run(ctx context.Context) error {
	i := c.newInterest()
	if err := c.expressInterest(i, c.cfg.Retry.backoff()); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Sending", i)

	if c.cfg.Delay >= 0 {
		c.sched.Schedule(c.cfg.Delay, c.delayedInterest)
	}

	return c.loop.Run(ctx)
}

func (c *Consumer) newInterest() *packet.Interest {
	i := packet.NewInterest(c.cfg.Name)
	i.Lifetime = c.cfg.Lifetime
	i.MustBeFresh = c.cfg.MustBeFresh
	i.RefreshNonce()
	return i
}

func (c *Consumer) expressInterest(i *packet.Interest, b retry.Backoff) error {
	sent := time.Now()
	_, err := c.face.ExpressInterest(i,
		func(i *packet.Interest, d *packet.Data) {
			c.onData(i, d, time.Since(sent))
		},
		c.onNack,
		func(i *packet.Interest) {
			c.onTimeout(i, b)
		},
	)
	if err != nil {
		return fmt.Errorf("could not express %s: %w", i.Name, err)
	}
	c.metrics.InterestSent()
	return nil
}

func (c *Consumer) onData(i *packet.Interest, d *packet.Data, rtt time.Duration) {
	c.metrics.DataReceived(rtt)
	c.log.Debug().Stringer("name", d.Name).Dur("rtt", rtt).Msg("data")
	fmt.Fprintln(c.out, d)
	c.outcome()
}

func (c *Consumer) onNack(i *packet.Interest, n *packet.Nack) {
	c.metrics.NackReceived(n.Reason.String())
	fmt.Fprintf(c.out, "received Nack with reason %s for interest %s\n", n.Reason, i)
	c.outcome()
}

func (c *Consumer) onTimeout(i *packet.Interest, b retry.Backoff) {
	c.metrics.Timeout()
	fmt.Fprintln(c.out, "Timeout", i)

	delay, stop := b.Next()
	if stop {
		c.metrics.GaveUp()
		c.log.Warn().Stringer("interest", i).Uint64("retries", c.cfg.Retry.Max).Msg("retry budget exhausted")
		fmt.Fprintln(c.out, "Giving up", i)
		return
	}
	c.sched.Schedule(delay, func() {
		i.RefreshNonce()
		fmt.Fprintln(c.out, "Re-sending", i)
		if err := c.expressInterest(i, b); err != nil {
			c.loop.Fail(err)
			return
		}
		c.metrics.Retransmitted()
	})
}

func (c *Consumer) delayedInterest() {
	fmt.Fprintln(c.out, "One more Interest, delayed by the scheduler")

	i := c.newInterest()
	if err := c.expressInterest(i, c.cfg.Retry.backoff()); err != nil {
		c.loop.Fail(err)
		return
	}
	fmt.Fprintln(c.out, "Sending", i)
}

func (c *Consumer) outcome() {
	c.outcomes++
	if c.cfg.Limit > 0 && c.outcomes >= c.cfg.Limit {
		c.log.Debug().Int("limit", c.cfg.Limit).Msg("limit reached")
		c.loop.Stop()
	}
}
