package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/marmos91/ostreesync/internal/logger"
	"github.com/marmos91/ostreesync/pkg/fetcher"
	"github.com/marmos91/ostreesync/pkg/pull"
	"github.com/marmos91/ostreesync/pkg/pullmetrics"
	"github.com/marmos91/ostreesync/pkg/repoconfig"
)

var (
	pullWatch bool
)

var pullCmd = &cobra.Command{
	Use:   "pull <remote> [ref...]",
	Short: "Pull commits, trees, and content from a remote into the local store",
	Long: `Pull discovers the requested refs (or every branch configured for the
remote, if none are given) against the remote's locally-configured section,
then fetches every metadata and content object the resulting commits
reach that isn't already stored locally.

Examples:
  # Pull every configured branch
  ostreesync pull origin

  # Pull one ref
  ostreesync pull origin stable

  # Re-pull whenever the config file changes
  ostreesync pull origin stable --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPull,
}

func init() {
	pullCmd.Flags().BoolVar(&pullWatch, "watch", false, "re-run the pull whenever the config file changes")
}

func runPull(cmd *cobra.Command, args []string) error {
	remoteName := args[0]
	refs := args[1:]

	if err := doPull(cmd.Context(), remoteName, refs); err != nil {
		return err
	}
	if !pullWatch {
		return nil
	}
	return watchAndPull(cmd.Context(), remoteName, refs)
}

func doPull(ctx context.Context, remoteName string, refs []string) error {
	cfg, err := repoconfig.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	store, err := repoconfig.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	if err := repoconfig.SeedRemotes(ctx, cfg, store); err != nil {
		return fmt.Errorf("failed to seed remotes: %w", err)
	}

	spec, ok := cfg.Remotes[remoteName]
	if !ok {
		return fmt.Errorf("remote %q is not configured (run: ostreesync remote add %s <url>)", remoteName, remoteName)
	}

	fetch := fetcher.New(spec.URL, spec.TLSPermissive)

	var sink pull.MetricsSink
	if cfg.Metrics.Enabled {
		sink = pullmetrics.New(prometheus.NewRegistry())
	}

	result, err := pull.Pull(ctx, store, fetch, pull.Request{RemoteName: remoteName, Names: refs, Sink: sink})
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	printPullSummary(remoteName, result)
	return nil
}

func printPullSummary(remoteName string, result *pull.Result) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ref", "digest"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for ref, digest := range result.ResolvedRefs {
		table.Append([]string{ref, string(digest)})
	}
	table.Render()

	fmt.Printf("\n%s: %d metadata, %d content objects fetched (%d bytes)\n",
		remoteName, result.FetchedMeta, result.FetchedContent, result.BytesTransferred)
}

// watchAndPull re-triggers a pull whenever the config file backing this
// invocation changes, for a long-lived "keep this mirror current" use.
func watchAndPull(ctx context.Context, remoteName string, refs []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = repoconfig.GetDefaultConfigPath()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(configPath); err != nil {
		return fmt.Errorf("failed to watch config file %s: %w", configPath, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	fmt.Fprintf(os.Stderr, "Watching %s for changes (Ctrl+C to stop)...\n", configPath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Info("config changed, re-running pull", "remote", remoteName)
			if err := doPull(ctx, remoteName, refs); err != nil {
				fmt.Fprintf(os.Stderr, "pull failed: %v\n", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}
