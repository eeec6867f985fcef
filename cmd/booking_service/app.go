package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"booking_service/internal/auth"
	"booking_service/internal/config"
	"booking_service/internal/handler"
	"booking_service/internal/mail"
	"booking_service/internal/metrics"
	"booking_service/internal/service"
	"booking_service/internal/storage"
)

type app struct {
	cfg     *config.Config
	log     *slog.Logger
	storage storage.Storage
	tokens  *auth.TokenCodec
	metrics *metrics.Metrics
	service interface {
		service.Service
		RunTokenGC(ctx context.Context, interval time.Duration) error
	}
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	const op = "main.newApp"

	cfg := config.MustLoadConfig(configPath)
	lgr := setupLogger(cfg.Env)

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tokens, err := auth.NewTokenCodec(auth.Keys{
		PrivateKeyPEM: cfg.PrivateKey,
		PublicKeyPEM:  cfg.PublicKey,
		RefreshSecret: cfg.RefreshSecret,
		HashSecret:    cfg.HashSecret,
	},
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
		auth.WithChallengeTTL(cfg.ChallengeTTL),
	)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	templates, err := mail.NewTemplates(cfg.Brand)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var sender mail.Sender
	if cfg.Mail.Host != "" {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			User:     cfg.Mail.User,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			TLSMode:  cfg.Mail.TLSMode,
		}, lgr)
	} else {
		lgr.Warn("smtp host is empty, codes are only logged")
		sender = mail.NewLogSender(lgr)
	}

	m := metrics.New()

	srvc := service.NewService(st, tokens, auth.NewPasswordHasher(cfg.Pepper), sender, templates,
		service.Config{
			UniformErrors:       cfg.UniformErrors,
			AllowedEmailDomains: cfg.AllowedEmailDomains,
		},
		lgr,
		service.WithMetrics(m),
	)

	return &app{
		cfg:     cfg,
		log:     lgr,
		storage: st,
		tokens:  tokens,
		metrics: m,
		service: srvc,
	}, nil
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return storage.NewMemoryStorage(), nil
	default:
		return storage.NewPostgresStorage(ctx, cfg.DbURL)
	}
}

func (a *app) handler() *handler.Handler {
	return handler.NewHandler(a.service, handler.Config{
		CookieDomain:       a.cfg.Cookie.Domain,
		CookieSecure:       a.cfg.Cookie.Secure,
		CookieSameSite:     handler.ParseSameSite(a.cfg.Cookie.SameSite),
		TrustedProxies:     a.cfg.TrustedProxies,
		AccessTTL:          a.tokens.AccessTTL(),
		RefreshTTL:         a.tokens.RefreshTTL(),
		ChallengeTTL:       a.tokens.ChallengeTTL(),
		RateLimitPerMinute: a.cfg.RateLimit.PerMinute,
		RateLimitBurst:     a.cfg.RateLimit.Burst,
	}, a.metrics, a.log)
}

func (a *app) Close() {
	a.storage.Close()
}
