package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wolfed",
	Short: "Moderator assistant for werewolf games",
	Long: `wolfed keeps the authoritative state of a werewolf game for the person
running it: who is alive, who wakes next, what happened during the night and
who wins.`,
	SilenceUsage: true,
}

var serveFlags flagValues

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the moderator server",
	Long:  `Serves the moderator API and WebSocket console feed, resuming the most recently saved game.`,
	RunE:  runServe,
}

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the role catalog in wake order",
	RunE: func(cmd *cobra.Command, args []string) error {
		faction, _ := cmd.Flags().GetString("faction")
		return printRoles(cmd.OutOrStdout(), DefaultRegistry(), Faction(faction))
	},
}

func init() {
	serveFlags = registerFlags(serveCmd.Flags())
	rolesCmd.Flags().StringP("faction", "f", "", "only list roles of this faction")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rolesCmd)
}

func printRoles(out io.Writer, reg *Registry, faction Faction) error {
	roles := catalogOrder(reg)
	if faction != "" {
		roles = reg.ByFaction(faction)
		if len(roles) == 0 {
			return fmt.Errorf("%w: no roles in faction %q", ErrUnknownRole, faction)
		}
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WAKE\tID\tNAME\tFACTION\tACTION\tTRAITS")
	for _, r := range roles {
		wake := "-"
		if r.Wakes() {
			wake = fmt.Sprint(r.WakeOrder)
		}
		traits := make([]string, len(r.Traits))
		for i, t := range r.Traits {
			traits[i] = string(t)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", wake, r.ID, r.Name, r.Faction, r.NightAction, strings.Join(traits, ","))
	}
	return tw.Flush()
}

// catalogOrder lists waking roles in wake order, then the passive ones
func catalogOrder(reg *Registry) []Role {
	roles := reg.ByWakeOrder()
	for _, r := range reg.All() {
		if !r.Wakes() {
			roles = append(roles, r)
		}
	}
	return roles
}

// openStore opens the configured snapshot store
func openStore(cfg AppConfig, reg *Registry, retention time.Duration) (Store, error) {
	switch cfg.Store {
	case "sqlite":
		return OpenSQLStore(cfg.DB, reg)
	case "redis":
		rc := DefaultRedisConfig()
		rc.URL = cfg.RedisURL
		rc.FinishedGameTTL = retention
		return OpenRedisStore(rc, reg)
	}
	return nil, fmt.Errorf("unknown store %q (want sqlite or redis)", cfg.Store)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Set up logging to both stdout and file
	logFile, err := os.OpenFile("wolfed.log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	cfg, err := loadConfig(*serveFlags.configPath)
	if err != nil {
		return err
	}
	serveFlags.applyTo(&cfg)
	devMode = cfg.Dev
	if devMode {
		cfg.LogDebug = true
	}

	if err := InitAppLogger(cfg.toLogConfig()); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer CloseAppLogger()
	if appLogger.IsEnabled() {
		log.Println("Extended logging enabled")
	}

	retention, err := time.ParseDuration(cfg.FinishedRetention)
	if err != nil {
		return fmt.Errorf("finished_retention: %w", err)
	}

	reg := DefaultRegistry()
	store, err := openStore(cfg, reg, retention)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	defer store.Close()
	log.Printf("Store: %s", cfg.Store)

	// Start WebSocket hub
	hub := newHub()
	go hub.run()
	defer hub.stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := realClock{}
	moderator, err := NewModerator(ctx, store, reg, CryptoRandom{}, clock, hub)
	if err != nil {
		return err
	}
	moderator.storyteller = initStoryteller(cfg)

	code := cfg.ModeratorCode
	if code == "" {
		if code, err = generateSecretCode(); err != nil {
			return fmt.Errorf("generate moderator code: %w", err)
		}
		log.Printf("Moderator code: %s", code)
	}

	scheduler := newScheduler(store, moderator, clock, retention)
	if err := scheduler.Start(cfg.PruneSchedule); err != nil {
		return err
	}
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: newServer(moderator, store, reg, hub, code).routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Println("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logError("server shutdown", err)
		}
	}
	return nil
}
