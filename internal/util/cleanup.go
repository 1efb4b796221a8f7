package util

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

// TempSuffix marks chapter folders that are still being downloaded.
const TempSuffix = "_tmp"

type cleanupLogger interface {
	Infof(string, ...any)
	Warnf(string, ...any)
}

// InterruptContext returns a context that is cancelled on SIGINT or SIGTERM.
// When the signal arrives, unfinished chapter folders under outputDir are
// removed, and outputDir itself if nothing is left in it. The returned stop
// function releases the signal handler.
func InterruptContext(parent context.Context, outputDir string, log cleanupLogger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-done:
		case <-ctx.Done():
			if parent.Err() != nil {
				return
			}
			log.Infof("Interrupt received. Cleaning up %s", outputDir)
			CleanupUnfinishedTempFolders(outputDir, log)
			RemoveIfEmpty(outputDir, log)
		}
	}()

	return ctx, func() {
		close(done)
		stop()
	}
}

func CleanupUnfinishedTempFolders(outputDir string, log cleanupLogger) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() && strings.HasSuffix(name, TempSuffix) {
			full := filepath.Join(outputDir, name)

			if err := os.RemoveAll(full); err != nil {
				log.Warnf("Error cleaning up %s: %v", full, err)
			} else {
				log.Infof("Removed %s", full)
			}
		}
	}
}

func RemoveIfEmpty(dir string, log cleanupLogger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	if len(entries) == 0 {
		if err := os.Remove(dir); err == nil {
			log.Infof("Removed empty output folder: %s", dir)
		}
	}
}

func CleanupFolder(folder string) {
	_ = os.RemoveAll(folder)
}
