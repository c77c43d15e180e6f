package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/openarcade/gameshelf/internal/catalog"
	"github.com/openarcade/gameshelf/internal/config"
	"github.com/openarcade/gameshelf/internal/domain"
	"github.com/openarcade/gameshelf/internal/metrics"
	"github.com/openarcade/gameshelf/internal/notify"
	"github.com/openarcade/gameshelf/internal/orchestrator"
	"github.com/openarcade/gameshelf/internal/runner"
	"github.com/openarcade/gameshelf/internal/schedule"
	"github.com/openarcade/gameshelf/internal/site"
	"github.com/openarcade/gameshelf/internal/store"
	"github.com/openarcade/gameshelf/internal/updater"
	"github.com/openarcade/gameshelf/internal/vcs"
	"github.com/openarcade/gameshelf/internal/watch"
	"github.com/openarcade/gameshelf/tui"
	"github.com/openarcade/gameshelf/web/api"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	buildTUI          bool
	buildSkipExisting bool
	servePort         int
)

func init() {
	// build command
	buildCmd := &cobra.Command{
		Use:   "build [GAME...]",
		Short: "Fetch and build games, then generate the site",
		RunE:  runBuild,
	}
	buildCmd.Flags().BoolVar(&buildTUI, "tui", false, "show a live dashboard while building")
	buildCmd.Flags().BoolVar(&buildSkipExisting, "skip-existing", false, "skip games already present under the output root")
	rootCmd.AddCommand(buildCmd)

	// list command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog games",
		RunE:  runList,
	}
	rootCmd.AddCommand(listCmd)

	// status command
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest batch and per-game history",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	// validate command
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the config and catalog without building",
		RunE:  runValidate,
	}
	rootCmd.AddCommand(validateCmd)

	// serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the site with live rebuilds",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)

	// version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the gameshelf version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gameshelf %s\n", version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	// update command
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Update gameshelf to the latest release",
		RunE:  runUpdate,
	}
	rootCmd.AddCommand(updateCmd)
}

func loadConfig() (*config.Config, error) {
	return config.LoadWithLocalFallback(configPath)
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := catalog.Load(cfg.General.Catalog)
	if err != nil {
		return err
	}

	specs := cat.Games
	order := cat.IDs
	if len(args) > 0 {
		specs = make(map[string]domain.GameSpec, len(args))
		order = nil
		for _, id := range args {
			spec, ok := cat.Games[id]
			if !ok {
				return fmt.Errorf("game %q not in catalog (%s)", id, cat.Source)
			}
			specs[id] = spec
			order = append(order, id)
		}
	}

	st, err := store.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	logger := newLogger(os.Stderr)
	if buildTUI {
		// Logs would tear up the alt screen.
		logger = newLogger(io.Discard)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch := orchestrator.New(vcs.New(logger), runner.New(logger), logger)
	opts := orchestrator.Options{
		OutputRoot:   cfg.General.OutputRoot,
		Concurrency:  cfg.General.Concurrency,
		Order:        order,
		SkipExisting: buildSkipExisting,
	}

	var report *domain.BatchReport
	var runErr error

	if buildTUI {
		model := tui.NewModel(tui.ModelConfig{Order: order, Cancel: cancel})
		p := tea.NewProgram(model, tea.WithAltScreen())
		opts.Events = func(ev orchestrator.Event) {
			p.Send(tui.JobEventMsg(ev))
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			report, runErr = orch.Run(ctx, specs, opts)
			p.Send(tui.DoneMsg{Report: report, Err: runErr})
		}()

		if _, err := p.Run(); err != nil {
			cancel()
			<-done
			return err
		}

		select {
		case <-done:
		default:
			// Quit before the batch ended; in-flight jobs still finish.
			fmt.Println("Waiting for running jobs...")
			<-done
		}
	} else {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			fmt.Fprintln(os.Stderr, "\nCanceling batch, running jobs will finish...")
			cancel()
		}()

		fmt.Printf("Building %d games into %s\n", len(specs), cfg.General.OutputRoot)
		report, runErr = orch.Run(ctx, specs, opts)
	}
	if runErr != nil {
		return runErr
	}

	if err := st.RecordBatch(report); err != nil {
		return fmt.Errorf("recording batch: %w", err)
	}

	if len(args) == 0 {
		gen := site.New(cfg.Site.Title, cfg.Site.Template, logger)
		if err := gen.Generate(cfg.General.OutputRoot, report, site.Views(specs, report)); err != nil {
			return err
		}
	} else {
		fmt.Println("Partial build, index page left as is")
	}

	notifier := notify.FromConfig(cfg.Notifications.Desktop, cfg.Notifications.SlackWebhook)
	if err := notifier.Send(notify.FromReport(report)); err != nil {
		logger.Warn("notification failed", "error", err)
	}

	fmt.Println(report.Summary())
	if !report.Success {
		os.Exit(1)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := catalog.Load(cfg.General.Catalog)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLICENSE\tPLATFORMS\tREPO")
	for _, game := range cat.Ordered() {
		license := game.License
		if license == "" {
			license = "-"
		}
		platforms := strings.Join(game.Platforms(), ",")
		if platforms == "" {
			platforms = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			game.ID, game.DisplayName(), license, platforms, game.RepoURL)
	}
	w.Flush()

	fmt.Printf("%d games (catalog: %s)\n", cat.Len(), cat.Source)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	latest, err := st.LatestBatch()
	if err != nil {
		return err
	}
	if latest == nil {
		fmt.Println("No batches recorded yet")
		return nil
	}

	fmt.Printf("Batch %s, finished %s: %s\n",
		latest.ID, humanize.Time(latest.FinishedAt), latest.Summary())

	records, err := st.LastOutcomes()
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLAST RESULT\tREVISION\tWHEN")
	for _, id := range ids {
		rec := records[id]
		revision := rec.Revision
		if revision == "" {
			revision = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%.12s\t%s\n",
			id, rec.Kind, revision, humanize.Time(rec.StartedAt))
	}
	w.Flush()

	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := catalog.Load(cfg.General.Catalog)
	if err != nil {
		return err
	}

	invalid := 0
	for _, game := range cat.Ordered() {
		_, warnings, err := game.Validate()
		if err != nil {
			invalid++
			fmt.Printf("%s: invalid: %v\n", game.ID, err)
			continue
		}
		for _, warning := range warnings {
			fmt.Printf("%s: warning: %s\n", game.ID, warning)
		}
	}

	if invalid > 0 {
		fmt.Printf("%d of %d games invalid\n", invalid, cat.Len())
		os.Exit(1)
	}
	fmt.Printf("%d games valid (catalog: %s)\n", cat.Len(), cat.Source)
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	latest, err := updater.Latest()
	if err != nil {
		return err
	}

	if !updater.NeedsUpdate(version, latest) {
		fmt.Printf("gameshelf %s is up to date\n", version)
		return nil
	}

	fmt.Printf("Updating gameshelf %s -> %s\n", version, latest)
	if err := updater.SelfUpdate(latest); err != nil {
		return err
	}

	fmt.Println("Updated. Restart gameshelf to pick up the new version.")
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr)

	st, err := store.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	port := servePort
	if port == 0 {
		port = cfg.Serve.Port
	}
	addr := fmt.Sprintf("%s:%d", cfg.Serve.Host, port)

	g, ctx := errgroup.WithContext(ctx)

	// The rebuild closure captures server so it can stream progress; server
	// is created right after and Trigger is never called before that.
	var server *api.Server
	rebuild := func() error {
		cat, err := catalog.Load(cfg.General.Catalog)
		if err != nil {
			return err
		}

		orch := orchestrator.New(vcs.New(logger), runner.New(logger), logger)
		report, err := orch.Run(ctx, cat.Games, orchestrator.Options{
			OutputRoot:  cfg.General.OutputRoot,
			Concurrency: cfg.General.Concurrency,
			Order:       cat.IDs,
			Events: func(ev orchestrator.Event) {
				server.Broadcast(api.SSEEvent{Type: "job_update", Data: map[string]string{
					"game_id": ev.GameID,
					"state":   string(ev.State),
				}})
			},
		})
		if err != nil {
			return err
		}

		if err := st.RecordBatch(report); err != nil {
			return err
		}

		gen := site.New(cfg.Site.Title, cfg.Site.Template, logger)
		if err := gen.Generate(cfg.General.OutputRoot, report, site.Views(cat.Games, report)); err != nil {
			return err
		}

		metrics.ObserveReport(report)
		server.Broadcast(api.SSEEvent{Type: "batch_complete", Data: report.Summary()})
		server.NotifyReload()

		notifier := notify.FromConfig(cfg.Notifications.Desktop, cfg.Notifications.SlackWebhook)
		if err := notifier.Send(notify.FromReport(report)); err != nil {
			logger.Warn("notification failed", "error", err)
		}
		return nil
	}

	rebuilder := api.NewRebuilder(rebuild, logger)
	server = api.NewServer(st, cfg.General.OutputRoot, addr, rebuilder, logger)

	watcher, err := watch.New(func(changed []string) {
		rebuilder.Trigger("file change")
	}, logger)
	if err != nil {
		return err
	}
	defer watcher.Stop()

	if cfg.General.Catalog != "" {
		if err := watcher.AddFile(cfg.General.Catalog); err != nil {
			return fmt.Errorf("watching catalog: %w", err)
		}
	}
	if cfg.Site.Template != "" {
		if err := watcher.AddFile(cfg.Site.Template); err != nil {
			return fmt.Errorf("watching template: %w", err)
		}
	}
	watcher.Start(ctx)

	g.Go(func() error {
		return server.Start(ctx)
	})

	if cfg.Schedule.Cron != "" {
		sched, err := schedule.New(cfg.Schedule.Cron, logger)
		if err != nil {
			return fmt.Errorf("invalid schedule: %w", err)
		}
		g.Go(func() error {
			sched.Start(func() error {
				rebuilder.Trigger("schedule")
				return nil
			})
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sched.Stop()
			return nil
		})
	}

	rebuilder.Trigger("startup")
	fmt.Printf("Serving %s at http://%s\n", cfg.General.OutputRoot, addr)

	return g.Wait()
}
