package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"padron/internal/auth"
	"padron/internal/db"
	"padron/internal/mailer"
	"padron/internal/ratelimiter"
	"padron/internal/seed"
	"padron/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "1.0.0"

func envString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
		fmt.Printf("Invalid %s, defaulting to %d\n", key, fallback)
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
		fmt.Printf("Invalid %s, defaulting to %t\n", key, fallback)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		fmt.Printf("Invalid %s, defaulting to %s\n", key, fallback)
	}
	return fallback
}

// NewLogger creates a zap sugared logger writing colored console output.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)
	core := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), zapcore.InfoLevel)

	return zap.New(core).Sugar(), nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}

	cfg := config{
		addr: envString("ADDR", ":8080"),
		env:  envString("ENV", "development"),
		db: dbConfig{
			addr:        envString("DB_ADDR", "mongodb://localhost:27017"),
			name:        envString("DB_NAME", "padron"),
			maxPoolSize: uint64(envInt("DB_MAX_POOL_SIZE", 100)),
			maxIdleTime: envString("DB_MAX_IDLE_TIME", "15m"),
		},
		mail: mailConfig{
			host:      os.Getenv("SMTP_HOST"),
			port:      envInt("SMTP_PORT", 587),
			username:  os.Getenv("SMTP_USERNAME"),
			password:  os.Getenv("SMTP_PASSWORD"),
			fromEmail: os.Getenv("SMTP_FROM_EMAIL"),
		},
		auth: authConfig{
			token: tokenConfig{
				secret:        os.Getenv("AUTH_TOKEN_SECRET"),
				accessExp:     envDuration("AUTH_ACCESS_TOKEN_EXP", time.Hour*2),
				activationExp: envDuration("AUTH_ACTIVATION_TOKEN_EXP", time.Hour*24),
				iss:           "Padron",
			},
		},
		seed: seedConfig{
			enabled:       envBool("SEED_ON_START", true),
			adminPassword: envString("SEED_ADMIN_PASSWORD", "admin123"),
		},
		rateLimiter: ratelimiter.Config{
			RequestsPerTimeFrame: envInt("RATELIMITER_REQUESTS_COUNT", 200),
			TimeFrame:            5 * time.Second,
			Enabled:              envBool("RATE_LIMITER_ENABLED", false),
		},
	}

	logger, err := NewLogger()
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	if cfg.auth.token.secret == "" {
		logger.Fatal("AUTH_TOKEN_SECRET is required")
	}

	// Database
	client, err := db.New(cfg.db.addr, cfg.db.maxPoolSize, cfg.db.maxIdleTime)
	if err != nil {
		logger.Fatal(err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	}()
	logger.Info("database connection established")

	database := client.Database(cfg.db.name)

	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := db.EnsureIndexes(ctx, database); err != nil {
			logger.Fatal(err)
		}
	}

	storage := store.NewStorage(database)

	// Mail client is optional: without SMTP settings, activation tokens are
	// only returned in the start-activate-account response.
	var mailClient mailer.Client
	if cfg.mail.host != "" {
		mailClient, err = mailer.NewSMTPClient(
			cfg.mail.host,
			cfg.mail.port,
			cfg.mail.username,
			cfg.mail.password,
			cfg.mail.fromEmail,
		)
		if err != nil {
			logger.Fatal(err)
		}
	}

	jwtAuthenticator := auth.NewJWTAuthenticator(
		cfg.auth.token.secret,
		cfg.auth.token.iss,
		cfg.auth.token.iss,
		cfg.auth.token.accessExp,
		cfg.auth.token.activationExp,
	)

	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)

	if cfg.seed.enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		seeder := seed.New(storage, logger, cfg.seed.adminPassword)
		if err := seeder.Run(ctx); err != nil {
			cancel()
			logger.Fatal(err)
		}
		cancel()
	}

	app := &application{
		config:        cfg,
		store:         storage,
		logger:        logger,
		mailer:        mailClient,
		authenticator: jwtAuthenticator,
		rateLimiter:   rateLimiter,
	}

	// Metrics collected at /debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
