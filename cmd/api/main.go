package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mernchat/server/internal/auth"
	"github.com/mernchat/server/internal/data"
	"github.com/mernchat/server/internal/db"
	"github.com/mernchat/server/internal/files"
	"github.com/mernchat/server/internal/middleware"
	"github.com/mernchat/server/internal/relay"
)

func newLogger() *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(os.Stdout),
		zapcore.InfoLevel,
	)
	return zap.New(core)
}

func main() {
	log := newLogger()
	defer func() { _ = log.Sync() }()

	// Read configuration from environment
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		log.Fatal("MONGODB_URI must be set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "4040"
	}
	filesDir := os.Getenv("FILES_DIR")
	if filesDir == "" {
		filesDir = "./files"
	}
	origins := []string{"http://localhost:5173"}
	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		origins = append(origins, clientURL)
	}

	ctx := context.Background()

	// Initialize database
	dbClient, err := db.New(ctx, mongoURI)
	if err != nil {
		log.Fatal("failed to connect to DB", zap.Error(err))
	}
	defer func() {
		_ = dbClient.Close(context.Background())
	}()

	// Ensure indexes exist
	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.Fatal("failed to create indexes", zap.Error(err))
	}

	// Create stores
	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	msgsStore := data.NewMessagesStore(dbClient.MessagesCollection())

	fileStore, err := files.NewStore(filesDir)
	if err != nil {
		log.Fatal("failed to init file store", zap.Error(err))
	}

	// Token valid for 24 hours, matching the cookie max-age.
	jwtMgr := auth.NewJWTManager(jwtSecret, 24*time.Hour)

	// Connection registry and message relay (the live half of the server).
	registry := relay.NewRegistry(relay.Config{}, log)
	msgRelay := relay.NewRelay(registry, msgsStore, fileStore, log)

	// Rate limiter for the credential endpoints. RATE_LIMIT_RPM controls
	// requests per minute; small burst allows a couple of quick retries.
	rateRPM := 10
	if v := os.Getenv("RATE_LIMIT_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rateRPM = n
		}
	}
	limiterStore := middleware.NewLimiterStore(rateRPM, 3, 1*time.Minute)
	defer limiterStore.Stop()

	srv := newServer(usersStore, msgsStore, jwtMgr, fileStore, registry, msgRelay, origins, log)
	router := newRouter(srv, limiterStore)

	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Info("server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server exit", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
}
