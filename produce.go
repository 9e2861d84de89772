package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-ndn/consumer/face"
	"github.com/go-ndn/consumer/metrics"
	"github.com/go-ndn/consumer/producer"
	"github.com/go-ndn/consumer/sched"
)

func newProduceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Answer Interests under a prefix, for testing the consumer",
		RunE:  runProduce,
	}
	addProduceFlags(cmd.Flags())
	return cmd
}

func runProduce(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cmd.ErrOrStderr(), cfg.Debug)

	reg := prometheus.NewRegistry()
	p, err := producer.New(cfg.Producer(),
		producer.WithLogger(log),
		producer.WithMetrics(metrics.NewProducerCollector(reg)),
	)
	if err != nil {
		return err
	}

	ln, err := net.Listen(cfg.Listen.Network, cfg.Listen.Address)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", cfg.Listen, err)
	}
	log.Info().Stringer("listen", cfg.Listen).Str("prefix", cfg.Prefix).Msg("serving")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	loop := sched.NewLoop()
	s := sched.NewScheduler(loop)
	faces := make(map[*face.Face]struct{})

	// attach runs on the loop for every accepted connection.
	attach := func(conn net.Conn) {
		var f *face.Face
		f = face.New(conn, loop, s,
			face.WithLogger(log),
			face.WithErrorHandler(func(err error) {
				loop.Post(func() {
					if errors.Is(err, face.ErrRemoteClosed) {
						log.Debug().Stringer("remote", conn.RemoteAddr()).Msg("client left")
					} else {
						log.Warn().Err(err).Stringer("remote", conn.RemoteAddr()).Msg("client failed")
					}
					delete(faces, f)
					f.Close()
				})
			}),
		)
		faces[f] = struct{}{}
		p.Attach(f)
	}

	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			loop.Post(func() {
				attach(conn)
			})
		}
	})
	g.Go(func() error {
		// the listener is the loop's work until ctx ends
		loop.AddWork()
		go func() {
			<-ctx.Done()
			loop.DoneWork()
		}()
		err := loop.Run(ctx)
		for f := range faces {
			f.Close()
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(ctx, cfg.MetricsAddr, reg, log)
		})
	}
	return g.Wait()
}
