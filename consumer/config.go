package consumer

import (
	"time"

	"github.com/sethvargo/go-retry"
	enc "github.com/zjkmxy/go-ndn/pkg/encoding"

	"github.com/go-ndn/consumer/packet"
)

// RetryConfig bounds re-expression after a timeout. Max is the number of
// retransmissions per Interest. Backoff is the first delay between attempts,
// doubled on each retry and capped at Cap. A zero Backoff re-sends at once.
type RetryConfig struct {
	Max     uint64
	Backoff time.Duration
	Cap     time.Duration
}

type Config struct {
	Name        enc.Name
	Lifetime    time.Duration
	MustBeFresh bool
	// Delay before the extra Interest is sent. Negative disables it.
	Delay time.Duration
	Retry RetryConfig
	// Limit stops the loop after this many Data or Nack outcomes; zero means
	// run until no work is left.
	Limit int
}

func DefaultConfig() Config {
	return Config{
		Name:        packet.MustParseName("/example/testApp/randomData"),
		Lifetime:    time.Second,
		MustBeFresh: true,
		Delay:       2 * time.Second,
		Retry: RetryConfig{
			Max: 3,
		},
	}
}

func (r RetryConfig) backoff() retry.Backoff {
	var b retry.Backoff = retry.BackoffFunc(func() (time.Duration, bool) {
		return 0, false
	})
	if r.Backoff > 0 {
		// base is positive, so NewExponential cannot fail
		b, _ = retry.NewExponential(r.Backoff)
		if r.Cap > 0 {
			b = retry.WithCappedDuration(r.Cap, b)
		}
	}
	return retry.WithMaxRetries(r.Max, b)
}
