package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	appName = "todo-backend"
	version = "2.0.0"
)

type config struct {
	port int
	env  string
	jwt  struct {
		secret string
		ttl    time.Duration
	}
	broker struct {
		host     string
		port     int
		topic    string
		clientID string
		qos      int
	}
	limiter struct {
		enabled             bool
		maxRequestPerSecond float64
		burst               int
	}
	cors struct {
		trustedOrigins []string
	}
}

type application struct {
	config      config
	logger      *zap.Logger
	credentials credentialStore
	store       *todoStore
	publisher   publisher
}

func main() {
	var cfg config
	flag.IntVar(&cfg.port, "port", envInt("PORT", 8000), "Server port")
	flag.StringVar(&cfg.env, "env", envString("ENV", "development"), "Environment [development|production]")

	flag.StringVar(&cfg.jwt.secret, "jwt-secret", os.Getenv("SECRET_KEY"), "JWT signing secret")
	var ttlMinutes int
	flag.IntVar(&ttlMinutes, "jwt-ttl-minutes", envInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30), "Access token lifetime in minutes")

	flag.StringVar(&cfg.broker.host, "broker-host", envString("BROKER_HOST", "localhost"), "Message broker host")
	flag.IntVar(&cfg.broker.port, "broker-port", envInt("BROKER_PORT", 1883), "Message broker port")
	flag.StringVar(&cfg.broker.topic, "broker-topic", envString("BROKER_TOPIC", "todos"), "Topic for todo events")
	flag.StringVar(&cfg.broker.clientID, "broker-client-id", envString("BROKER_CLIENT_ID", "todo-producer"), "Broker client identifier")
	flag.IntVar(&cfg.broker.qos, "broker-qos", envInt("BROKER_QOS", 0), "Broker publish QoS [0|1|2]")

	flag.BoolVar(&cfg.limiter.enabled, "limiter-enabled", true, "Enable rate limiter")
	flag.Float64Var(&cfg.limiter.maxRequestPerSecond, "limiter-rps", 10, "Rate limiter max requests per second per client")
	flag.IntVar(&cfg.limiter.burst, "limiter-burst", 20, "Rate limiter burst per client")

	var corsOrigins string
	flag.StringVar(&corsOrigins, "cors-trusted-origins", envString("CORS_TRUSTED_ORIGINS", "*"), "Trusted CORS origins (space separated)")
	flag.Parse()

	cfg.jwt.ttl = time.Duration(ttlMinutes) * time.Minute
	cfg.cors.trustedOrigins = strings.Fields(corsOrigins)

	logger, err := newLogger(cfg.env)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.jwt.secret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Fatal("failed to generate JWT secret", zap.Error(err))
		}
		cfg.jwt.secret = string(secret)
		logger.Warn("no JWT secret configured, generated a random one; tokens will not survive a restart")
	}

	credentials, err := newDemoCredentials()
	if err != nil {
		logger.Fatal("failed to build credential store", zap.Error(err))
	}

	var pub publisher
	pub, err = newBrokerPublisher(cfg, logger)
	if err != nil {
		logger.Warn("broker unreachable, events will be dropped", zap.Error(err))
		pub = nopPublisher{}
	}

	app := &application{
		config:      cfg,
		logger:      logger,
		credentials: credentials,
		store:       newTodoStore(),
		publisher:   pub,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.port),
		Handler:      composeRoutes(app),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	shutdownErr := make(chan error, 1)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit
		logger.Info("shutting down", zap.String("signal", s.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(ctx)
	}()

	logger.Info("starting server",
		zap.String("app", appName),
		zap.String("version", version),
		zap.String("env", cfg.env),
		zap.Int("port", cfg.port),
		zap.String("broker", fmt.Sprintf("%s:%d", cfg.broker.host, cfg.broker.port)),
		zap.String("topic", cfg.broker.topic),
		zap.Duration("token_ttl", cfg.jwt.ttl),
	)
	err = srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	if err := <-shutdownErr; err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	app.publisher.close()
	logger.Info("stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
