package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cbodonnell/arcade/pkg/api"
	"github.com/cbodonnell/arcade/pkg/api/middleware"
	"github.com/cbodonnell/arcade/pkg/arcade"
	authproviders "github.com/cbodonnell/arcade/pkg/auth/providers"
	"github.com/cbodonnell/arcade/pkg/config"
	"github.com/cbodonnell/arcade/pkg/log"
	"github.com/cbodonnell/arcade/pkg/network"
	"github.com/cbodonnell/arcade/pkg/queue"
	"github.com/cbodonnell/arcade/pkg/store"
	"github.com/cbodonnell/arcade/pkg/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid config: %v", err))
	}

	parsedLogLevel, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel).With("service", "arcade-server")
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Opening store %s", cfg.RedactedDatabaseURL())
	durable, err := store.Open(ctx, cfg.DatabaseURL, cfg.MigrationsDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open store: %v", err))
	}

	outbox := queue.NewInMemoryQueue(cfg.OutboxSize)
	manager := arcade.NewManager(arcade.NewManagerOptions{
		Store:  durable,
		Outbox: outbox,
	})

	var authProvider authproviders.AuthProvider
	if cfg.FirebaseEnabled() {
		firebaseAuthProvider, err := authproviders.NewFirebaseAuthProvider(ctx, authproviders.NewFirebaseAuthProviderOptions{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentialsFile,
			APIKey:          cfg.FirebaseAPIKey,
		})
		if err != nil {
			panic(fmt.Sprintf("Failed to create Firebase auth provider: %v", err))
		}
		authProvider = firebaseAuthProvider
		log.Info("Verifying tokens with Firebase project %s", cfg.FirebaseProjectID)
	} else {
		log.Warn("No auth provider configured, all players are %s", arcade.AnonymousUser)
	}

	var apiTLS *api.TLSConfig
	var wsTLS *network.TLSConfig
	if cfg.TLSEnabled() {
		apiTLS = &api.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile}
		wsTLS = &network.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile}
	}

	networkManager := network.NewNetworkManager(network.NewNetworkManagerOptions{
		Arcade:         manager,
		OriginPatterns: cfg.AllowedOrigins,
	})
	authMiddleware := middleware.NewAuthMiddleware(middleware.NewAuthMiddlewareOptions{
		AuthProvider:  authProvider,
		Required:      cfg.RequireAuth,
		AnonymousUser: arcade.AnonymousUser,
	})
	wsServer := network.NewWSServer(network.NewWSServerOptions{
		Port:    cfg.WSPort,
		TLS:     wsTLS,
		Handler: authMiddleware(networkManager),
	})
	go wsServer.Start()

	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:         cfg.APIPort,
		TLS:          apiTLS,
		AuthProvider: authProvider,
		RequireAuth:  cfg.RequireAuth,
		Arcade:       manager,
	})
	go apiServer.Start()

	broadcastWorker := workers.NewBroadcastWorker(workers.NewBroadcastWorkerOptions{
		Outbox:      outbox,
		Broadcaster: networkManager,
		Interval:    cfg.BroadcastInterval,
	})
	go broadcastWorker.Start(ctx)

	reaperWorker := workers.NewReaperWorker(workers.NewReaperWorkerOptions{
		Reaper:   manager,
		TTL:      cfg.InstanceTTL,
		Interval: cfg.ReapInterval,
	})
	go reaperWorker.Start(ctx)

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server: %v", err)
	}
	if err := wsServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop WebSocket server: %v", err)
	}
	manager.Shutdown(shutdownCtx)
	if n := broadcastWorker.Flush(shutdownCtx); n > 0 {
		log.Debug("Flushed %d publications", n)
	}
	if err := durable.Close(shutdownCtx); err != nil {
		log.Error("Failed to close store: %v", err)
	}
}
