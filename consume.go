package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-ndn/consumer/config"
	"github.com/go-ndn/consumer/consumer"
	"github.com/go-ndn/consumer/face"
	"github.com/go-ndn/consumer/metrics"
	"github.com/go-ndn/consumer/sched"
)

func newConsumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Express Interests and print the answers",
		RunE:  runConsume,
	}
	addConsumeFlags(cmd.Flags())
	return cmd
}

func runConsume(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cmd.ErrOrStderr(), cfg.Debug)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := dial(ctx, cfg.Remote, cfg.DialRetries, log)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	loop := sched.NewLoop()
	s := sched.NewScheduler(loop)
	f := face.New(conn, loop, s, face.WithLogger(log))
	defer f.Close()

	c := consumer.New(f, loop, s, cmd.OutOrStdout(), cfg.Consumer(),
		consumer.WithLogger(log),
		consumer.WithMetrics(metrics.NewConsumerCollector(reg)),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// the metrics server lives as long as the consumer
		defer cancel()
		return c.Run(ctx)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(ctx, cfg.MetricsAddr, reg, log)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// dial connects to ep, retrying with capped exponential backoff.
func dial(ctx context.Context, ep config.Endpoint, retries uint64, log zerolog.Logger) (net.Conn, error) {
	b, err := retry.NewExponential(100 * time.Millisecond)
	if err != nil {
		return nil, err
	}
	b = retry.WithMaxRetries(retries, retry.WithCappedDuration(2*time.Second, b))

	var (
		d    net.Dialer
		conn net.Conn
	)
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		c, err := d.DialContext(ctx, ep.Network, ep.Address)
		if err != nil {
			log.Debug().Err(err).Stringer("remote", ep).Msg("dial failed")
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", ep, err)
	}
	log.Debug().Stringer("remote", ep).Msg("connected")
	return conn, nil
}
