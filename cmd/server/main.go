package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"provisio/internal/admin"
	"provisio/internal/captcha"
	"provisio/internal/directory"
	"provisio/internal/invite"
	"provisio/internal/license"
	"provisio/internal/platform/config"
	"provisio/internal/platform/httpserver"
	"provisio/internal/platform/logger"
	platformredis "provisio/internal/platform/redis"
	"provisio/internal/provision"
	"provisio/internal/session"
	"provisio/internal/settings"
	"provisio/internal/tenant"
	httptransport "provisio/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("initializing provisio",
		"addr", cfg.Addr,
		"redis", cfg.RedisURL != "",
		"require_invite", cfg.RequireInvite,
	)

	var (
		tenantStore   tenant.Store
		inviteStore   invite.Store
		sessionStore  session.Store
		settingsStore settings.Store
		health        func(ctx context.Context) error
	)
	if cfg.RedisURL != "" {
		client, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			log.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				client.RecordPoolStats()
			}
		}()

		tenantStore = tenant.NewRedisStore(client)
		inviteStore = invite.NewRedisStore(client)
		sessionStore = session.NewRedisStore(client)
		settingsStore = settings.NewRedisStore(client)
		health = client.Health
	} else {
		log.Warn("REDIS_URL not set, using in-process stores; state is lost on restart")
		tenantStore = tenant.NewInMemoryStore()
		inviteStore = invite.NewInMemoryStore()
		sessionStore = session.NewInMemoryStore()
		settingsStore = settings.NewInMemoryStore()
	}

	tenants := tenant.NewService(tenantStore)
	invites := invite.NewService(inviteStore)
	sessions := session.NewService(sessionStore, cfg.SessionSigningKey, cfg.SessionTTL)
	settingsSvc := settings.NewService(settingsStore, settings.Settings{
		CaptchaSecret:     cfg.CaptchaSecret,
		CaptchaSiteKey:    cfg.CaptchaSiteKey,
		RequireInvite:     cfg.RequireInvite,
		UsageLocation:     cfg.UsageLocation,
		ReservedNames:     cfg.ReservedNames,
		ReservedAddresses: cfg.ReservedAddresses,
	})

	dir := directory.NewClient(directory.Config{
		BaseURL:       cfg.DirectoryBaseURL,
		LoginURL:      cfg.DirectoryLoginURL,
		Scope:         cfg.DirectoryScope,
		UsageLocation: cfg.UsageLocation,
	}, log)
	verifier := captcha.NewClient(cfg.CaptchaVerifyURL)

	workflow := provision.NewService(tenants, settingsSvc, invites, verifier, dir, log)
	users := admin.NewUserDirectory(tenants, dir, log)
	licenses := license.NewService(dir, log)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:    log,
		Provision: provision.NewHandler(workflow, tenants, settingsSvc, log),
		Session:   session.NewHandler(sessions, log),
		Sessions:  sessions,
		Tenants:   tenant.NewHandler(tenants, log),
		Invites:   invite.NewHandler(invites, log),
		Admin:     admin.NewHandler(users, licenses, tenants, settingsSvc, log),
		Health:    health,
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
