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

	"go.uber.org/zap"

	"avatarsync/config"
	"avatarsync/logging"
	"avatarsync/network"
	"avatarsync/palette"
	"avatarsync/room"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Palette
	pool, err := loadPalette(cfg.PalettePath)
	if err != nil {
		return fmt.Errorf("load palette: %w", err)
	}
	colors := pool.Remaining()
	log.Info("palette loaded", zap.String("path", cfg.PalettePath), zap.Int("colors", len(colors)))

	// 4. Rooms + transport
	rooms := room.NewManager(room.Config{
		SimTickHz:   cfg.SimTickHz,
		BroadcastHz: cfg.BroadcastHz,
		Variant:     cfg.Variant,
		Tuning:      cfg.Tuning,
		Palette:     colors,
		Logger:      log.Named("room"),
	})
	defer rooms.StopAll()

	srv := network.NewServer(network.ServerConfig{
		Rooms:        rooms,
		Colors:       colors,
		Logger:       log.Named("net"),
		WriteTimeout: cfg.WriteTimeout,
		PongTimeout:  cfg.PongTimeout,
		InputHz:      cfg.ClientInputHz,
		InputBurst:   cfg.InputBurst,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening",
			zap.String("addr", cfg.Addr),
			zap.Int("sim_hz", cfg.SimTickHz),
			zap.Int("broadcast_hz", cfg.BroadcastHz),
			zap.String("variant", cfg.Variant))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func loadPalette(path string) (*palette.Pool, error) {
	if path == "" {
		return palette.Default()
	}
	return palette.LoadFile(path)
}
