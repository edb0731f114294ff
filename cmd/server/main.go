package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mfalchik/chatsync/internal/api"
	"github.com/mfalchik/chatsync/internal/chat"
	"github.com/mfalchik/chatsync/internal/config"
	"github.com/mfalchik/chatsync/internal/crypto"
	"github.com/mfalchik/chatsync/internal/database"
	"github.com/mfalchik/chatsync/internal/server"
	"github.com/mfalchik/chatsync/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	configFile     string
	addr           string
	dsn            string
	signingKey     string
	messageKey     string
	authRateLimit  float64
	allowedOrigins stringSliceFlag
)

func main() {
	// .env is optional; flags and real environment take precedence
	_ = godotenv.Load()

	flag.StringVar(&configFile, "config", os.Getenv("CHATSYNC_CONFIG"), "path to YAML config file")
	flag.StringVar(&addr, "addr", os.Getenv("CHATSYNC_ADDR"), "server address")
	flag.StringVar(&dsn, "dsn", os.Getenv("CHATSYNC_DSN"), "database connection string")
	flag.StringVar(&signingKey, "signing-key", os.Getenv("CHATSYNC_SIGNING_KEY"), "base64 encoded JWT signing key")
	flag.StringVar(&messageKey, "message-key", os.Getenv("CHATSYNC_MESSAGE_KEY"), "hex encoded 32-byte message encryption key")
	flag.Float64Var(&authRateLimit, "auth-rate-limit", 5, "requests per second allowed on auth endpoints, 0 disables")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[chatsync] ", log.LstdFlags)

	cfg, err := config.NewConfig(config.Params{
		ConfigFile:     configFile,
		ServerAddr:     addr,
		DatabaseDSN:    dsn,
		SigningKey:     signingKey,
		MessageKey:     messageKey,
		AllowedOrigins: allowedOrigins,
		AuthRateLimit:  authRateLimit,
	})
	if err != nil {
		logger.Fatal("config: ", err)
	}

	dbConn, err := database.NewPgChatSyncRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open: ", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate: ", err)
	}

	cipher, err := crypto.NewMessageCipher(cfg.MessageKey, logger)
	if err != nil {
		logger.Fatal("message cipher: ", err)
	}

	promStats := stats.NewPromStats()

	gateway := server.NewGateway(logger, dbConn, promStats)
	gateway.Start()

	chatService := chat.NewService(dbConn, cipher, gateway, logger)

	app := api.NewChatSyncApp(logger, chatService, gateway, dbConn, promStats.Handler(), cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := app.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down gateway...")
	gateway.Stop()

	logger.Println("shutdown complete")
}
