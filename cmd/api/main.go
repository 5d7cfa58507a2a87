package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	_ "github.com/redmonkez12/growth-api/docs" // Swagger docs
	"github.com/redmonkez12/growth-api/internal/auth"
	"github.com/redmonkez12/growth-api/internal/config"
	"github.com/redmonkez12/growth-api/internal/database"
	"github.com/redmonkez12/growth-api/internal/email"
	httpServer "github.com/redmonkez12/growth-api/internal/http"
	"github.com/redmonkez12/growth-api/internal/logging"
	"github.com/redmonkez12/growth-api/internal/session"
	"github.com/redmonkez12/growth-api/internal/user"
)

//go:generate swag init -g main.go -d .,../../internal -o ../../docs --parseInternal

// @title           Growth API
// @version         1.0
// @description     Authentication backend with server-side sessions, password reset, Google sign-in and an AI service proxy.

// @host      localhost:10000
// @BasePath  /

func main() {
	rootCmd := &cobra.Command{
		Use:   "growth-api",
		Short: "Growth authentication API",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  runServe,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE:  runMigrate,
	}

	rootCmd.AddCommand(serveCmd, migrateCmd)

	// Running without a subcommand serves
	rootCmd.RunE = serveCmd.RunE

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"store", cfg.Database.Driver,
		"session_store", cfg.Auth.SessionStore,
	)

	users, closeUsers, err := initUserStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize user store: %w", err)
	}
	defer closeUsers()

	sessionStore, closeSessions, err := initSessionStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	defer closeSessions()

	production := !cfg.Server.IsDevelopment()
	clock := clockwork.NewRealClock()

	sessions := session.NewManager(sessionStore, cfg.Auth.SessionTTL, production, users)

	states, err := auth.NewStateSealer(cfg.Auth.PasetoKey, clock)
	if err != nil {
		return fmt.Errorf("failed to initialize oauth state sealer: %w", err)
	}

	var provider auth.IdentityProvider
	if cfg.Google.Enabled() {
		provider = auth.NewGoogleProvider(auth.GoogleOptions{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			CallbackURL:  cfg.Google.CallbackURL,
			Timeout:      cfg.Google.Timeout,
		})
	} else {
		logger.Warn("google sign-in disabled: GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set")
	}

	// Links carry plaintext tokens, so they only reach the log in development
	emailService := email.NewService(logger, cfg.App.FrontendURL, cfg.App.PublicURL, cfg.Server.IsDevelopment())

	authService := auth.NewService(
		users,
		sessions,
		auth.NewArgon2Hasher(auth.DefaultArgon2Params),
		auth.NewTokenGenerator(nil),
		emailService,
		clock,
		logger,
		auth.Options{
			RequireEmailVerification: cfg.Auth.RequireEmailVerification,
			ResetTokenTTL:            cfg.Auth.ResetTokenTTL,
		},
	)

	authHandler := auth.NewHandler(authService, provider, states, cfg.App.FrontendURL, production)

	var aiTarget *url.URL
	if cfg.AI.ServiceURL != "" {
		aiTarget, err = url.Parse(cfg.AI.ServiceURL)
		if err != nil {
			return fmt.Errorf("invalid AI_SERVICE_URL: %w", err)
		}
	} else {
		logger.Warn("ai proxy disabled: AI_SERVICE_URL not set")
	}
	aiProxy := httpServer.NewAIProxy(aiTarget, cfg.AI.Timeout)

	router := httpServer.NewRouter(cfg, authHandler, sessions, aiProxy, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadHeaderTimeout,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())

	if cfg.Database.Driver != config.StoreDriverPostgres {
		logger.Info("nothing to migrate", "store", cfg.Database.Driver)
		return nil
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := database.CreateSchema(cmd.Context(), db); err != nil {
		return err
	}

	logger.Info("schema is up to date")
	return nil
}

// initUserStore returns the credential store selected by STORE_DRIVER
func initUserStore(cfg config.DatabaseConfig) (auth.UserStore, func(), error) {
	if cfg.Driver == config.StoreDriverMemory {
		return user.NewMemoryStore(), func() {}, nil
	}

	db, err := initDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return user.NewRepository(db), func() { db.Close() }, nil
}

// initSessionStore returns the session store selected by SESSION_STORE
func initSessionStore(ctx context.Context, cfg *config.Config) (scs.Store, func(), error) {
	if cfg.Auth.SessionStore == config.SessionStoreMemory {
		return memstore.New(), func() {}, nil
	}

	client, err := initRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return session.NewRedisStore(client), func() { client.Close() }, nil
}

// initDB initializes the database connection and returns a Bun DB instance
func initDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return database.NewBunDB(sqlDB), nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
