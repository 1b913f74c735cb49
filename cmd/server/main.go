// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	adservice "motelhub/internal/advertisement/service"
	adhttp "motelhub/internal/advertisement/transport/http"
	"motelhub/internal/config"
	"motelhub/internal/metrics"
	otprepository "motelhub/internal/otp/repository"
	otpservice "motelhub/internal/otp/service"
	otphttp "motelhub/internal/otp/transport/http"
	"motelhub/internal/sms"
	"motelhub/pkg/db"
	"motelhub/pkg/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if cfg.JWTSecret == "" || cfg.OTP.Secret == "" {
		return errors.New("JWT_SECRET and OTP_SECRET must be set")
	}

	log.Info("motelhub api starting", zap.String("env", cfg.AppEnv), zap.String("db_driver", cfg.DatabaseDriver))

	database, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer database.Close()
	log.Info("database connected, migrations applied")

	metrics.InitMetrics()

	// --- ИНИЦИАЛИЗАЦИЯ СЛОЁВ ---
	adService := adservice.NewService(database, log.Named("ads"))
	adHandler := adhttp.NewHandler(adService, log.Named("ads"))

	otpService, err := otpservice.NewService(
		otprepository.NewRepository(database),
		newSMSSender(cfg, log),
		otpOptions(cfg),
		log.Named("otp"),
	)
	if err != nil {
		return err
	}
	otpHandler := otphttp.NewHandler(otpService, cfg.JWTSecret, cfg.SessionTTL, log.Named("otp"))

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(cfg, database, adHandler, otpHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown на сигналы ОС
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		log.Info("shutdown signal received", zap.String("signal", s.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func newSMSSender(cfg *config.Config, log *zap.Logger) sms.Sender {
	if cfg.SMS.ProviderURL == "" {
		log.Warn("SMS_PROVIDER_URL is empty, codes will only be logged")
		return sms.NewLogSender(log.Named("sms"))
	}
	return sms.NewHTTPSender(cfg.SMS.ProviderURL, cfg.SMS.APIKey, cfg.SMS.Timeout, log.Named("sms"))
}

func otpOptions(cfg *config.Config) otpservice.Options {
	policy := otpservice.DefaultPolicy()
	policy.MaxAttempts = cfg.OTP.MaxAttempts
	policy.LockDuration = cfg.OTP.LockDuration

	return otpservice.Options{
		Secret:        cfg.OTP.Secret,
		DefaultRegion: cfg.OTP.DefaultRegion,
		ExposeCode:    cfg.OTP.Debug && !cfg.IsProduction(),
		Policy:        policy,
	}
}

// healthHandler пингует базу, чтобы балансировщик не слал трафик на инстанс без БД.
func healthHandler(database *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := database.PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("OK"))
	}
}
