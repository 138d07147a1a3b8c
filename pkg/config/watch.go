package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file on change and pushes the rag and model
// settings into store. onUpdate, when set, observes every attempt.
// It is a no-op without a config file.
func (l *Loader) Watch(store *Store, logger *slog.Logger, onUpdate func(error)) {
	if l.path == "" {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.apply(e, store, logger, onUpdate)
	})
	l.v.WatchConfig()
	logger.Info("watching config file", "path", l.path)
}

func (l *Loader) apply(e fsnotify.Event, store *Store, logger *slog.Logger, onUpdate func(error)) {
	if logger == nil {
		logger = slog.Default()
	}
	t := l.decode().Tunables()
	_, err := store.Update(Patch{
		MaxSearchResults:    &t.MaxSearchResults,
		SimilarityThreshold: &t.SimilarityThreshold,
		Model:               &t.Model,
	})
	if err != nil {
		logger.Warn("config reload rejected", "file", e.Name, "err", err)
	} else {
		logger.Info("config reloaded", "file", e.Name, "max_search_results", t.MaxSearchResults,
			"similarity_threshold", t.SimilarityThreshold, "model", t.Model)
	}
	if onUpdate != nil {
		onUpdate(err)
	}
}
