package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/uvatlas/internal/logger"
)

// settleDelay collapses the burst of events editors emit on save.
const settleDelay = 250 * time.Millisecond

func cmdWatch(args []string) {
	inv := parseInvocation("watch", args)
	path := inv.configPath()
	if path == "" {
		fmt.Fprintln(os.Stderr, "Usage: atlastool watch -config <file> [primitive...]")
		os.Exit(1)
	}

	cfg, err := inv.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watch(ctx, inv, path); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// watch regenerates the atlas now and after every change to path until ctx
// is done. Failed runs are logged and the watch continues.
func watch(ctx context.Context, inv *invocation, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	path, err = filepath.Abs(path)
	if err != nil {
		return err
	}
	// Watch the directory: editors often replace the file instead of
	// writing it in place.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	log := logger.Component("watch")
	log.Info("watching config", zap.String("path", path))

	run := func() {
		cfg, err := inv.load()
		if err != nil {
			log.Error("config rejected", zap.Error(err))
			return
		}
		if _, err := generate(ctx, cfg); err != nil {
			log.Error("generation failed", zap.Error(err))
		}
	}
	run()

	timer := time.NewTimer(settleDelay)
	timer.Stop()
	for {
		select {
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(e.Name) != path || !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				continue
			}
			log.Debug("config changed", zap.Stringer("op", e.Op))
			timer.Reset(settleDelay)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			run()

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
