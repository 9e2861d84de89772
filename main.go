package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/go-ndn/consumer/config"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ndn-consumer",
		Short: "Send Interests to an NDN forwarder and print what comes back",
		Long: `ndn-consumer expresses an Interest, prints the Data or Nack that answers it,
re-sends it on timeout, and sends one more Interest after a delay.

Without a subcommand it runs consume.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runConsume,
	}
	cmd.PersistentFlags().String("config", "", "JSON config file")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("metrics-addr", "", "serve prometheus metrics on this address")
	addConsumeFlags(cmd.Flags())

	cmd.AddCommand(newConsumeCmd(), newProduceCmd())
	return cmd
}

// run executes the command line args and returns the exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "ERROR:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// loadConfig merges defaults, the config file and the flags of cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v := viper.New()
	fs := cmd.Flags()
	if err := v.BindPFlags(fs); err != nil {
		return config.Config{}, err
	}
	for key, flag := range map[string]string{
		"retry.max":     "retry-max",
		"retry.backoff": "retry-backoff",
		"retry.cap":     "retry-cap",
	} {
		if f := fs.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return config.Config{}, err
			}
		}
	}
	path, err := fs.GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(v, path)
}

func newLogger(out io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	w := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func addConsumeFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.String("remote", d.Remote.String(), "forwarder to connect to, as network://address")
	fs.Uint64("dial-retries", d.DialRetries, "how often to retry a failed connection attempt")
	fs.String("name", d.Name, "name of the Interest")
	fs.Duration("lifetime", d.Lifetime, "Interest lifetime")
	fs.Bool("must-be-fresh", d.MustBeFresh, "set MustBeFresh on every Interest")
	fs.Duration("delay", d.Delay, "delay before the extra Interest; negative disables it")
	fs.Uint64("retry-max", d.Retry.Max, "retransmissions per Interest after a timeout")
	fs.Duration("retry-backoff", d.Retry.Backoff, "first delay between retransmissions, doubled each time")
	fs.Duration("retry-cap", d.Retry.Cap, "upper bound on the retransmission delay")
	fs.Int("limit", d.Limit, "stop after this many Data or Nack; 0 runs until nothing is pending")
}

func addProduceFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.String("listen", d.Listen.String(), "where to accept connections, as network://address")
	fs.String("prefix", d.Prefix, "prefix to answer")
	fs.String("content", d.Content, "payload of every Data")
	fs.Duration("freshness", d.Freshness, "FreshnessPeriod of every Data")
	fs.Int("cache-size", d.CacheSize, "number of Data kept in the content store")
}
