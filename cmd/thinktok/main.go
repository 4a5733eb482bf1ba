// Command thinktok is a terminal client for a ThinkTok feed server: one card
// per screen, j/k to scroll.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/abelbrown/thinktok/internal/api"
	"github.com/abelbrown/thinktok/internal/beacon"
	"github.com/abelbrown/thinktok/internal/config"
	"github.com/abelbrown/thinktok/internal/history"
	"github.com/abelbrown/thinktok/internal/logging"
	"github.com/abelbrown/thinktok/internal/otel"
	"github.com/abelbrown/thinktok/internal/pager"
	"github.com/abelbrown/thinktok/internal/store"
	"github.com/abelbrown/thinktok/internal/tracker"
	"github.com/abelbrown/thinktok/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var version = "dev"

const shutdownFlushTimeout = 2 * time.Second

var (
	serverURL string
	username  string
	dataDir   string
)

var rootCmd = &cobra.Command{
	Use:          "thinktok",
	Short:        "Scroll a ThinkTok feed in the terminal",
	Version:      version,
	SilenceUsage: true,
	RunE:         runFeed,
}

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Deliver queued view reports and exit",
	RunE:  runFlush,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the recently viewed content IDs, most recent first",
	RunE:  runHistory,
}

var writeConfig bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration, or write it with --write",
	RunE:  runConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "Feed server URL (overrides config and "+config.EnvServer+")")
	rootCmd.PersistentFlags().StringVarP(&username, "user", "u", "", "Username sent as the username cookie")
	rootCmd.PersistentFlags().StringVar(&dataDir, "dir", "", "Data directory (default ~/.thinktok)")
	configCmd.Flags().BoolVarP(&writeConfig, "write", "w", false, "Save to "+config.ConfigPath())
	rootCmd.AddCommand(flushCmd, historyCmd, configCmd)
}

// loadConfig merges .env, the config file and command line flags.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.Server.URL = serverURL
	}
	if username != "" {
		cfg.Server.Username = username
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.Dir(), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return store.Open(filepath.Join(cfg.Dir(), "thinktok.db"))
}

func newClient(cfg *config.Config) *api.Client {
	return api.NewClient(cfg.Server.URL, cfg.Server.Username, cfg.Timeout(), cfg.Server.RPS)
}

func runFeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := logging.Init(cfg.Dir(), version); err != nil {
		return err
	}
	defer logging.Close()

	events, err := otel.OpenFile(filepath.Join(cfg.Dir(), "events"))
	if err != nil {
		logging.Warn("event log disabled", "err", err)
		events = otel.NewNullLogger()
	}
	defer events.Close()
	ring := otel.NewRingBuffer(otel.DefaultRingSize)
	events.SetRingBuffer(ring)
	events.Info(otel.KindStartup, "main", cfg.Server.URL)

	hist, err := history.Load(st)
	if err != nil {
		logging.Warn("viewed history reset", "err", err)
	}
	trk := tracker.New(hist, time.Now)
	trk.SetMinDwell(cfg.MinDwell())

	client := newClient(cfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	outbox := beacon.NewOutbox(st, events)
	drainer := beacon.NewDrainer(st, client,
		beacon.WithInterval(cfg.FlushInterval()),
		beacon.WithBatchSize(cfg.Beacon.BatchSize),
		beacon.WithParallelism(cfg.Beacon.Parallelism),
		beacon.WithEvents(events),
	)
	drainer.Start(ctx)

	app := ui.NewAppWithConfig(ui.AppConfig{
		Pager:   pager.New(cfg.Feed.SentinelThreshold),
		Tracker: trk,
		History: hist,
		FetchFeed: func(exclude []string) tea.Cmd {
			return func() tea.Msg {
				start := time.Now()
				items, err := client.FetchFeed(ctx, exclude)
				return ui.FeedLoaded{Items: items, Took: time.Since(start), Err: err}
			}
		},
		FetchSupplementary: func(exclude []string) tea.Cmd {
			return func() tea.Msg {
				start := time.Now()
				items, err := client.FetchSupplementary(ctx, exclude)
				return ui.SupplementLoaded{Items: items, Took: time.Since(start), Err: err}
			}
		},
		FetchMore: func(exclude []string) tea.Cmd {
			return func() tea.Msg {
				start := time.Now()
				items, err := client.FetchMore(ctx, exclude)
				return ui.MoreLoaded{Items: items, Took: time.Since(start), Err: err}
			}
		},
		ReportView: reportViewCmd(ctx, client),
		ToggleLike: func(contentID string) tea.Cmd {
			return func() tea.Msg {
				liked, err := client.ToggleLike(ctx, contentID)
				return ui.LikeToggled{ContentID: contentID, Liked: liked, Err: err}
			}
		},
		LoadComments: func(contentID string) tea.Cmd {
			return func() tea.Msg {
				page, err := client.Comments(ctx, contentID)
				return ui.CommentsLoaded{ContentID: contentID, Page: page, Err: err}
			}
		},
		PostComment: func(contentID, text string) tea.Cmd {
			return func() tea.Msg {
				c, err := client.PostComment(ctx, contentID, text)
				return ui.CommentPosted{ContentID: contentID, Comment: c, Err: err}
			}
		},
		Obs: ui.ObsConfig{Events: events, Ring: ring},
	})

	program := tea.NewProgram(app, tea.WithAltScreen())
	_, runErr := program.Run()
	if runErr != nil {
		logging.Error("program exited with error", "err", runErr)
		events.Error(otel.KindError, "main", runErr)
	}

	// Update has stopped; nothing else touches the tracker.
	res := shutdown(trk, outbox, drainer, cancel, events, shutdownFlushTimeout)
	logging.Info("final beacon flush", "delivered", res.Delivered, "failed", res.Failed)

	events.Info(otel.KindShutdown, "main", fmt.Sprintf("%d cards tracked", trk.TrackedCount()))
	return runErr
}

func runFlush(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	drainer := beacon.NewDrainer(st, newClient(cfg),
		beacon.WithBatchSize(cfg.Beacon.BatchSize),
		beacon.WithParallelism(cfg.Beacon.Parallelism),
	)
	res, err := drainer.Flush(cmd.Context())
	if err != nil {
		return err
	}
	remaining, err := st.CountBeacons()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "delivered %d, failed %d, %d still queued\n", res.Delivered, res.Failed, remaining)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	hist, err := history.Load(st)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	for _, id := range hist.Entries() {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if writeConfig {
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "wrote", config.ConfigPath())
		return nil
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
