package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/marmos91/netfs/internal/logger"
	"github.com/marmos91/netfs/pkg/metrics"
	"github.com/marmos91/netfs/pkg/netfs"
)

var (
	watchInterval time.Duration
	watchCount    int
)

var watchCmd = &cobra.Command{
	Use:   "watch LOCATOR",
	Short: "Periodically list a directory and export metrics",
	Long: `Repeatedly open and list LOCATOR as a directory, logging the outcome
of every round. With metrics enabled (--metrics or metrics.enabled) the
Prometheus endpoint is served on metrics.port while watching.

Stops on SIGINT/SIGTERM or after --count rounds.

Examples:
  netfs watch --metrics --interval 30s tnfs://tnfs.example.com/`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 10*time.Second, "time between rounds")
	watchCmd.Flags().IntVar(&watchCount, "count", 0, "stop after this many rounds (0 = run until interrupted)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchInterval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", watchInterval)
	}

	ctx := cmd.Context()
	c, err := newClient(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() { _ = c.Close(context.Background()) }()

	var group run.Group

	// Metrics server worker
	if srv := c.rt.Metrics.Server; srv != nil {
		metrics.RegisterBuildInfo(Version, Commit)
		srvCtx, cancel := context.WithCancel(ctx)
		group.Add(func() error {
			return srv.Start(srvCtx)
		}, func(error) {
			cancel()
		})
	}

	// Watcher worker
	{
		watchCtx, cancel := context.WithCancel(ctx)
		group.Add(func() error {
			return watchLoop(watchCtx, cmd, c)
		}, func(error) {
			cancel()
		})
	}

	// Signal worker
	{
		sigCtx, cancel := context.WithCancel(ctx)
		group.Add(func() error {
			ch := make(chan os.Signal, 2)
			signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(ch)

			select {
			case <-ch:
				logger.Info("Received shutdown signal")
			case <-sigCtx.Done():
			}
			return nil
		}, func(error) {
			cancel()
		})
	}

	return group.Run()
}

// watchLoop runs rounds until ctx is done or watchCount rounds completed.
// Round failures are logged, not returned.
func watchLoop(ctx context.Context, cmd *cobra.Command, c *client) error {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for round := 1; ; round++ {
		start := time.Now()
		n, err := listOnce(ctx, c.fs, c.loc)
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			kind := netfs.ErrorKindOf(err)
			logger.Warn("Round %d of %s failed after %s: %v (status %d)", round, c.loc, elapsed, err, byte(kind))
		} else {
			logger.Info("Round %d of %s: %d entries in %s", round, c.loc, n, elapsed)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%d entries\t%s\n", round, c.loc, n, elapsed)
		}

		if watchCount > 0 && round >= watchCount {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// listOnce lists loc and closes the Protocol again, counting entries.
func listOnce(ctx context.Context, p netfs.Protocol, loc *netfs.Locator) (int, error) {
	listing, err := readListing(ctx, p, loc)
	cerr := p.Close(ctx)
	if err != nil {
		return 0, err
	}
	if cerr != nil {
		return 0, cerr
	}

	n := 0
	eol := cfg.Device.EOLByte()
	for _, b := range listing {
		if b == eol {
			n++
		}
	}
	return n, nil
}
