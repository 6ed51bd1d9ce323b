// Command bot is a headless participant: it joins a room, walks in a
// circle and dances every few seconds.
package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"avatarsync/client"
	"avatarsync/config"
	"avatarsync/game"
	"avatarsync/logging"
	"avatarsync/network"
	"avatarsync/palette"
	"avatarsync/protocol"
)

const (
	defaultURL  = "ws://localhost:8080/ws"
	actionEvery = 3 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	url, err := config.GetEnvVariable("AVATARSYNC_SERVER_URL")
	if err != nil {
		url = defaultURL
	}
	name, err := config.GetEnvVariable("AVATARSYNC_BOT_NAME")
	if err != nil {
		name = "bot"
	}
	codec := protocol.JSON
	if c, err := config.GetEnvVariable("AVATARSYNC_BOT_CODEC"); err == nil && c == protocol.Msgpack.Name() {
		codec = protocol.Msgpack
	}

	var pool *palette.Pool
	if cfg.PalettePath != "" {
		pool, err = palette.LoadFile(cfg.PalettePath)
	} else {
		pool = palette.New(palette.DefaultColors())
	}
	if err != nil {
		return fmt.Errorf("load palette: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli, err := network.Dial(ctx, url, codec, cfg.WriteTimeout)
	if err != nil {
		return err
	}
	log.Info("connected", zap.String("url", url), zap.String("codec", codec.Name()))

	s := client.New(client.Config{
		Name:    name,
		Variant: cfg.Variant,
		TickHz:  cfg.ClientInputHz,
		Pool:    pool,
		Tuning:  cfg.Tuning,
		Out:     cli,
		Codec:   codec,
		Logger:  log,
		OnAction: func(a protocol.ActionPush) {
			log.Info("action", zap.String("avatar", a.ID), zap.String("name", a.Name))
		},
	})

	start := time.Now()
	lastAction := start
	walk := client.InputFunc(func() game.Input {
		t := time.Since(start).Seconds()
		if time.Since(lastAction) >= actionEvery {
			lastAction = time.Now()
			if act, ok := s.Action(); ok {
				log.Debug("performed", zap.String("action", act.Name))
			}
		}
		return game.Input{X: math.Cos(t), Y: math.Sin(t)}
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	readErr := make(chan error, 1)
	go func() {
		readErr <- cli.ReadLoop(ctx, s.Bridge().Deliver)
		cancel() // host gone, stop ticking
	}()

	s.Start()
	err = s.Run(ctx, walk)
	cancel()
	if rerr := <-readErr; rerr != nil && !errors.Is(rerr, context.Canceled) {
		return fmt.Errorf("connection: %w", rerr)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
