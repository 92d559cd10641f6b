package config

import (
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch loads the file at path and calls onChange with every successfully
// reloaded Config. A reload that fails validation is logged and the previous
// config stays active. The returned Config is the initial one.
func Watch(path string, log *zap.Logger, onChange func(Config)) (Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}
	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			log.Warn("config_reload_failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		log.Info("config_reloaded", zap.String("file", e.Name))
		onChange(next)
	})
	v.WatchConfig()

	return cfg, nil
}
