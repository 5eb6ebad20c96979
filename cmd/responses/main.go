package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guildbot/internal/config"
	"guildbot/internal/service"
	"guildbot/internal/storage"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

func main() {
	cfg, err := config.LoadService()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.Open(cfg.Service.DatabaseURL)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	server := &http.Server{
		Addr:              cfg.Service.Addr,
		Handler:           service.New(store, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       5 * time.Minute,
	}

	var redirect *http.Server
	if len(cfg.Service.AutocertHosts) > 0 {
		manager := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.Service.AutocertHosts...),
			Cache:      autocert.DirCache(cfg.Service.AutocertCacheDir),
		}
		server.Addr = ":443"
		server.TLSConfig = &tls.Config{GetCertificate: manager.GetCertificate}
		redirect = &http.Server{Addr: ":80", Handler: manager.HTTPHandler(nil), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := redirect.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("acme challenge server error", zap.Error(err))
			}
		}()
	}

	go func() {
		logger.Info("response service listening", zap.String("addr", server.Addr), zap.Bool("tls", server.TLSConfig != nil))
		var err error
		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("response service error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if redirect != nil {
		_ = redirect.Shutdown(ctx)
	}
	_ = server.Shutdown(ctx)
}
