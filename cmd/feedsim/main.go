// Command feedsim serves an in-memory ThinkTok feed for local development.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abelbrown/thinktok/internal/feedsim"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	addr     string
	articles int
	recycle  bool
)

var rootCmd = &cobra.Command{
	Use:   "feedsim",
	Short: "Serve a fake ThinkTok feed API",
	Long: `feedsim serves /api/feed, /api/feed/more, /api/load_more, /api/track_view,
/api/toggle_like and /api/comments from an in-memory catalogue.

By default the catalogue is finite, so scrolling long enough exhausts the feed.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&addr, "addr", "a", ":8000", "Listen address")
	rootCmd.Flags().IntVarP(&articles, "articles", "n", 0, "Generated catalogue size (0 = built-in pages)")
	rootCmd.Flags().BoolVar(&recycle, "recycle", false, "Restart the catalogue instead of running dry")
}

func run(cmd *cobra.Command, args []string) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "feedsim"})

	pages := feedsim.SeedPages()
	if articles > 0 {
		pages = feedsim.GeneratePages(articles)
	}
	sim := feedsim.New(pages)
	sim.Recycle = recycle

	srv := &http.Server{
		Addr:              addr,
		Handler:           sim.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "pages", len(pages), "recycle", recycle)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped", "views", len(sim.Views()))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
