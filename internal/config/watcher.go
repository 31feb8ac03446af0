package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ConfigWatcher watches the config file and hands each successfully
// reloaded configuration to the registered callbacks.
type ConfigWatcher struct {
	v          *viper.Viper
	mu         sync.RWMutex
	callbacks  []func(*BlobnetConfig)
	onError    func(error)
	lastConfig *BlobnetConfig
}

// NewConfigWatcher creates a watcher for the given app and config file.
func NewConfigWatcher(appName, cfgFile string) (*ConfigWatcher, error) {
	v := newViper(appName)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config file not readable: %w", err)
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}

	return &ConfigWatcher{
		v:          v,
		lastConfig: cfg,
	}, nil
}

// OnChange registers a callback to be called when configuration changes.
func (cw *ConfigWatcher) OnChange(callback func(*BlobnetConfig)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// OnError registers a callback for reloads that fail to parse or validate.
func (cw *ConfigWatcher) OnError(callback func(error)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.onError = callback
}

// Start begins watching for configuration changes.
func (cw *ConfigWatcher) Start() {
	cw.v.OnConfigChange(func(e fsnotify.Event) {
		if e.Has(fsnotify.Write) || e.Has(fsnotify.Create) {
			cw.handleChange()
		}
	})
	cw.v.WatchConfig()
}

// ConfigFile returns the file being watched.
func (cw *ConfigWatcher) ConfigFile() string {
	return cw.v.ConfigFileUsed()
}

func (cw *ConfigWatcher) handleChange() {
	cfg, err := unmarshal(cw.v)

	cw.mu.RLock()
	callbacks := make([]func(*BlobnetConfig), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	onError := cw.onError
	cw.mu.RUnlock()

	if err != nil {
		if onError != nil {
			onError(err)
		}
		return
	}

	for _, cb := range callbacks {
		cb(cfg)
	}

	cw.mu.Lock()
	cw.lastConfig = cfg
	cw.mu.Unlock()
}

// CurrentConfig returns the last loaded configuration.
func (cw *ConfigWatcher) CurrentConfig() *BlobnetConfig {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.lastConfig
}

// Reload forces a configuration reload.
func (cw *ConfigWatcher) Reload() error {
	if err := cw.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	cw.handleChange()
	return nil
}
