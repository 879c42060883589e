package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"flickshare/internal/metrics"
	"flickshare/internal/store"
	"flickshare/internal/transfer"
)

// errFailed marks a command whose failure was already printed as a status
// line.
var errFailed = errors.New("transfer failed")

var (
	logLevel      string
	dataPort      int
	dialTimeout   time.Duration
	acceptTimeout time.Duration
	ioTimeout     time.Duration
	metricsAddr   string

	logger    = logrus.New()
	collector = metrics.NewCollector()
)

var rootCmd = &cobra.Command{
	Use:           "flick",
	Short:         "send a file straight to another device on the local network",
	Long:          `flick moves a single file between two devices on the same local network without a server in between`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
		logger.SetOutput(cmd.ErrOrStderr())
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

		if metricsAddr != "" {
			go func() {
				if err := collector.Serve(cmd.Context(), metricsAddr, logger); err != nil {
					logger.WithError(err).Warn("Metrics endpoint stopped")
				}
			}()
		}
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.IntVar(&dataPort, "data-port", transfer.DataPort, "port the receiver listens on for the data connection")
	flags.DurationVar(&dialTimeout, "dial-timeout", transfer.DefaultDialTimeout, "timeout for outbound connections, 0 waits forever")
	flags.DurationVar(&acceptTimeout, "accept-timeout", 0, "how long to wait for the peer to connect, 0 waits forever")
	flags.DurationVar(&ioTimeout, "io-timeout", transfer.DefaultIOTimeout, "abort when a read or write stalls this long, 0 disables")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(receiveCmd)
	rootCmd.AddCommand(discoverCmd)
}

func options() transfer.Options {
	opts := transfer.DefaultOptions()
	opts.DataPort = dataPort
	opts.DialTimeout = dialTimeout
	opts.AcceptTimeout = acceptTimeout
	opts.IOTimeout = ioTimeout
	opts.Logger = logger
	opts.Metrics = collector
	return opts
}

// run executes one transfer while logging the speed of live sessions.
func run(ctx context.Context, fn func(ctx context.Context) (*transfer.Result, error)) (*transfer.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watchSessions(ctx, store.GetSessions(), 2*time.Second)
	return fn(ctx)
}

func watchSessions(ctx context.Context, sessions *store.Sessions, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range sessions.Active() {
				logger.WithFields(logrus.Fields{
					"session":    s.ID,
					"role":       s.Direction.String(),
					"peer":       s.CurrentPeer(),
					"bytes":      s.Bytes(),
					"speed_kbps": int64(s.Speed() / 1024),
					"avg_kbps":   int64(s.AverageSpeed() / 1024),
				}).Debug("Transfer progress")
			}
		}
	}
}

// finish prints the status line and turns a failure into errFailed so the
// process exits non-zero.
func finish(cmd *cobra.Command, direction store.TransferDirection, res *transfer.Result, err error) error {
	fmt.Fprintln(cmd.OutOrStdout(), transfer.Report(direction, res, err))
	if err != nil {
		return errFailed
	}
	return nil
}
