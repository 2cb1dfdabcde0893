package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/reportwatch/internal/accounts"
	"github.com/good-yellow-bee/reportwatch/internal/alerting"
	"github.com/good-yellow-bee/reportwatch/internal/analytics"
	"github.com/good-yellow-bee/reportwatch/internal/api"
	"github.com/good-yellow-bee/reportwatch/internal/api/auth"
	"github.com/good-yellow-bee/reportwatch/internal/api/health"
	"github.com/good-yellow-bee/reportwatch/internal/datasource"
	"github.com/good-yellow-bee/reportwatch/internal/events"
	"github.com/good-yellow-bee/reportwatch/internal/metrics"
	"github.com/good-yellow-bee/reportwatch/internal/notifier"
	"github.com/good-yellow-bee/reportwatch/internal/powerbi"
	"github.com/good-yellow-bee/reportwatch/internal/preferences"
	"github.com/good-yellow-bee/reportwatch/internal/storage"
	"github.com/good-yellow-bee/reportwatch/internal/web"
	"github.com/good-yellow-bee/reportwatch/internal/web/handlers"
	"github.com/good-yellow-bee/reportwatch/internal/web/session"
	"github.com/good-yellow-bee/reportwatch/pkg/config"
)

var (
	configFile string
	address    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "reportwatch-server",
	Short: "ReportWatch Server - Power BI KPI alerting",
	Long: `ReportWatch Server watches KPIs on Power BI reports, runs alert
conditions on a schedule and notifies subscribers when they trigger.
It serves the web dashboard and the JSON API on one listener.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.GetBuildInfo().Describe("reportwatch-server"))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&address, "address", "a", "", "HTTP listen address (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	if address != "" {
		cfg.Server.Address = address
	}
	cfg.Verbose = verbose

	secrets, err := LoadSecrets(os.Getenv)
	if err != nil {
		return err
	}
	if secrets.CSRFKey == nil {
		secrets.CSRFKey = make([]byte, 32)
		if _, err := rand.Read(secrets.CSRFKey); err != nil {
			return fmt.Errorf("generate csrf key: %w", err)
		}
		log.Printf("REPORTWATCH_CSRF_KEY not set, using a random key for this process")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	if err := store.EnsureAdminUser(); err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}
	log.Printf("database initialized at %s", cfg.Database.Path)

	catalog, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		return err
	}

	prefs, err := preferences.NewService(store.KV())
	if err != nil {
		return fmt.Errorf("preferences: %w", err)
	}

	var publisher events.Publisher = events.Noop{}
	var nats *events.NATSPublisher
	if cfg.NATS.Enabled {
		nats, err = events.NewNATSPublisher(events.Config{
			URL:    cfg.NATS.URL,
			Prefix: cfg.NATS.Prefix,
			Name:   "reportwatch-server",
		})
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nats.Close()
		publisher = nats
		log.Printf("publishing events to %s", cfg.NATS.URL)
	}

	summary := analytics.NewService(store.Alerts(), analytics.Source{Name: "sqlite", Stats: store.AlertHistory()})
	var sink alerting.RunSink
	var ch *storage.ClickHouseStorage
	if cfg.ClickHouse.Enabled {
		ch = storage.NewClickHouseStorage(&storage.ClickHouseConfig{
			Addresses:     cfg.ClickHouse.Addresses,
			Database:      cfg.ClickHouse.Database,
			Username:      cfg.ClickHouse.Username,
			Password:      cfg.ClickHouse.Password,
			Compression:   true,
			RetentionDays: cfg.ClickHouse.RetentionDays,
		})
		if err := ch.Open(); err != nil {
			return fmt.Errorf("open clickhouse: %w", err)
		}
		defer ch.Close()
		if err := ch.Migrate(); err != nil {
			return fmt.Errorf("migrate clickhouse: %w", err)
		}

		buffer := storage.NewRunBuffer(ch, &storage.RunBufferConfig{
			BatchSize:     cfg.ClickHouse.BatchSize,
			FlushInterval: cfg.ClickHouse.FlushInterval,
		})
		defer buffer.Close()
		sink = buffer

		summary = analytics.NewService(store.Alerts(), analytics.Source{Name: "clickhouse", Stats: ch}).
			WithFallback(analytics.Source{Name: "sqlite", Stats: store.AlertHistory()})
		log.Printf("analytics sink: clickhouse %v", cfg.ClickHouse.Addresses)
	}

	dispatcher, err := newDispatcher(cfg.Notifications)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	runner := alerting.NewRunner(alerting.RunnerDeps{
		Alerts:   store.Alerts(),
		History:  store.AlertHistory(),
		Client:   powerbi.NewMockClient(catalog),
		Catalog:  catalog,
		Notifier: dispatcher,
		Events:   publisher,
		Sink:     sink,
		Settings: prefs,
	}, alerting.RunnerConfig{
		Interval:     cfg.Runner.Interval,
		Timeout:      cfg.Runner.Timeout,
		CostPerQuery: cfg.Runner.CostPerQuery,
		BaseURL:      cfg.Server.BaseURL,
	})

	sessions := session.NewStore(cfg.Auth.SessionTTL)
	authenticator := auth.NewAuthenticator(store.Users(), auth.NewLockoutTracker(cfg.Auth.LockoutAttempts, cfg.Auth.LockoutDuration))
	acct := accounts.NewService(store, sessions)

	webSrv, err := web.NewServer(web.Config{
		CSRFKey:       secrets.CSRFKey,
		SecureCookies: cfg.Server.SecureCookies || cfg.Server.TLS.Enabled,
	}, handlers.Deps{
		Storage:     store,
		Sessions:    sessions,
		Auth:        authenticator,
		Accounts:    acct,
		Catalog:     catalog,
		Runner:      runner,
		Preferences: prefs,
		Analytics:   summary,
		Events:      publisher,
	})
	if err != nil {
		return fmt.Errorf("create web server: %w", err)
	}

	apiSrv, err := api.New(&api.Config{
		Address:          cfg.Server.Address,
		JWTSecret:        secrets.JWTSecret,
		HTTPTLSEnabled:   cfg.Server.TLS.Enabled,
		HTTPTLSCertFile:  cfg.Server.TLS.CertFile,
		HTTPTLSKeyFile:   cfg.Server.TLS.KeyFile,
		AccessTokenTTL:   cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL:  cfg.Auth.RefreshTokenTTL,
		RateLimitPerIP:   cfg.Auth.RateLimitPerIP,
		RateLimitPerUser: cfg.Auth.RateLimitPerUser,
		Verbose:          cfg.Verbose,
	}, api.Deps{
		Storage:     store,
		Auth:        authenticator,
		Accounts:    acct,
		Catalog:     catalog,
		Runner:      runner,
		Preferences: prefs,
		Analytics:   summary,
		Tester:      datasource.NewTester(10 * time.Second),
		Events:      publisher,
		Sessions:    sessions,
		Web:         webSrv.Routes(),
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	apiSrv.RegisterHealthChecker(health.NewSQLiteChecker(store.DB()))
	apiSrv.RegisterHealthChecker(health.NewCatalogChecker(catalog))
	if ch != nil {
		apiSrv.RegisterHealthChecker(health.NewClickHouseChecker(ch))
	}
	if nats != nil {
		apiSrv.RegisterHealthChecker(health.NewNATSChecker(nats))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("starting %s", config.GetBuildInfo().Describe("reportwatch-server"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return apiSrv.Run(gctx)
	})
	if *cfg.Runner.Enabled {
		g.Go(func() error {
			return runner.Run(gctx)
		})
	}
	if cfg.Catalog.Watch {
		g.Go(func() error {
			return catalog.Watch(gctx)
		})
	}
	if cfg.Server.MetricsAddress != "" {
		ms := metrics.NewServer(cfg.Server.MetricsAddress, config.GetBuildInfo())
		g.Go(func() error {
			return ms.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	log.Printf("server stopped")
	return nil
}

func loadCatalog(path string) (*powerbi.Catalog, error) {
	if path == "" {
		catalog, err := powerbi.NewCatalog()
		if err != nil {
			return nil, fmt.Errorf("load built-in catalog: %w", err)
		}
		return catalog, nil
	}
	catalog, err := powerbi.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	log.Printf("catalog loaded from %s", path)
	return catalog, nil
}

// newDispatcher registers every channel that has credentials configured.
func newDispatcher(cfg NotificationsConfig) (*notifier.Dispatcher, error) {
	limits := notifier.DefaultRateLimitConfig()
	if cfg.MaxPerMinute > 0 {
		limits.MaxPerWindow = cfg.MaxPerMinute
	}
	d := notifier.NewDispatcherWithRateLimit(limits)

	if cfg.Email.Host != "" {
		n, err := notifier.NewEmailNotifier(notifier.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		})
		if err != nil {
			return nil, fmt.Errorf("email notifier: %w", err)
		}
		d.Register(n)
	}
	if cfg.Teams.WebhookURL != "" {
		n, err := notifier.NewTeamsNotifier(notifier.TeamsConfig{WebhookURL: cfg.Teams.WebhookURL})
		if err != nil {
			return nil, fmt.Errorf("teams notifier: %w", err)
		}
		d.Register(n)
	}
	if cfg.Telegram.BotToken != "" {
		n, err := notifier.NewTelegramNotifier(notifier.TelegramConfig{BotToken: cfg.Telegram.BotToken})
		if err != nil {
			return nil, fmt.Errorf("telegram notifier: %w", err)
		}
		d.Register(n)
	}
	if cfg.WhatsApp.AccessToken != "" {
		n, err := notifier.NewWhatsAppNotifier(notifier.WhatsAppConfig{
			APIURL:        cfg.WhatsApp.APIURL,
			PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
			AccessToken:   cfg.WhatsApp.AccessToken,
		})
		if err != nil {
			return nil, fmt.Errorf("whatsapp notifier: %w", err)
		}
		d.Register(n)
	}

	if channels := d.Channels(); len(channels) > 0 {
		log.Printf("notification channels: %v", channels)
	} else {
		log.Printf("no notification channels configured, triggered alerts are only recorded")
	}
	return d, nil
}
