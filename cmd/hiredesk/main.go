package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"hiredesk/internal/api"
	"hiredesk/internal/config"
	appLog "hiredesk/internal/log"
	"hiredesk/internal/messaging"
	"hiredesk/internal/schedule"
	"hiredesk/internal/session"
	"hiredesk/internal/web"
)

// flagConfig holds CLI flag values applied on top of the config file.
type flagConfig struct {
	configPath string
	listen     string
	role       string
	once       bool
	verbose    bool
}

func main() {
	appLog.Info("hiredesk starting", "version", "0.1.0")

	// .env is optional; explicit env vars and flags win over it.
	_ = godotenv.Load()

	flags := parseFlags()
	if flags.verbose {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI overrides beat the config file.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.role != "" {
		conf.Role = flags.role
		conf.Normalize()
	}
	if v := os.Getenv("HIREDESK_BACKEND_URL"); v != "" {
		conf.BackendURL = v
	}

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("invalid timezone, falling back to local", err, "timezone", conf.Timezone)
		loc = time.Local
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"backend_url", conf.BackendURL,
		"role", conf.Role,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"poll_seconds", conf.PollSeconds,
		"idle_logout_minutes", conf.IdleLogoutMinutes,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	store, err := session.Open(conf.SessionPath)
	if err != nil {
		appLog.Error("failed to open session store", err, "path", conf.SessionPath)
		os.Exit(1)
	}
	client := api.NewClient(conf.BackendURL, conf.Role, store)
	sched := schedule.New(client, loc)

	if flags.once {
		if err := runOnce(ctx, sched, loc); err != nil {
			appLog.Error("single-shot run failed", err)
			os.Exit(1)
		}
		return
	}

	watchdog := session.NewWatchdog(store, time.Duration(conf.IdleLogoutMinutes)*time.Minute)
	go watchdog.Run(ctx)

	msgs := messaging.New(ctx, client,
		func() string { return store.Identity().UserID },
		time.Duration(conf.PollSeconds)*time.Second)
	defer msgs.Close()

	// The single subscribed effect for session invalidation: drop all
	// view state so the next request starts from the login screen.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-store.Invalidated():
				appLog.Info("session invalidated, dropping to logged-out state")
				msgs.Deselect()
			}
		}
	}()

	// Periodic schedule refresh, cron-driven like the rest of the desk's
	// background work.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(conf.RefreshCron, func() {
		if !store.LoggedIn() {
			return
		}
		rctx, rcancel := context.WithTimeout(ctx, 30*time.Second)
		defer rcancel()
		if err := sched.Load(rctx); err != nil {
			appLog.Error("periodic schedule refresh failed", err)
		}
	}); err != nil {
		appLog.Error("invalid refresh cron spec", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := web.NewServer(conf, store, watchdog, client, sched, msgs, loc)
	httpServer := &http.Server{
		Addr:    conf.Listen,
		Handler: srv.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLog.Error("HTTP shutdown failed", err)
		}
	}()

	appLog.Info("local desk API listening", "listen", "http://"+conf.Listen)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLog.Error("server failed", err)
		os.Exit(1)
	}

	appLog.Info("hiredesk exiting")
}

// runOnce fetches the schedule once and prints the next two weeks of
// interviews to stdout.
func runOnce(ctx context.Context, sched *schedule.ViewModel, loc *time.Location) error {
	fctx, fcancel := context.WithTimeout(ctx, 30*time.Second)
	defer fcancel()

	if err := sched.Load(fctx); err != nil {
		return err
	}

	upcoming := sched.Upcoming(time.Now().In(loc), 14)
	if len(upcoming) == 0 {
		fmt.Println("no interviews in the next 14 days")
		return nil
	}
	for _, ev := range upcoming {
		fmt.Println(schedule.Summary(ev))
	}
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/hiredesk/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.role, "role", "", "Actor role: recruiter or applicant (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch once, print upcoming interviews, and exit")
	flag.BoolVar(&cfg.verbose, "v", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
