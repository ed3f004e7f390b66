package cmd

import (
	"fmt"

	"agriassist-cli/cmd/config"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// configReloadedMsg carries a freshly loaded config file into the running
// session. The watcher goroutine only sends messages; the session is mutated
// on the UI loop.
type configReloadedMsg struct {
	cfg  *config.AgriAssistConfig
	path string
}

// StartConfigWatcherForSession watches the working directory for changes to
// an agriassist config file and publishes reloads through send. Returns a
// stop function; a watcher that cannot start degrades to a no-op since live
// reload is best effort.
func StartConfigWatcherForSession(send func(tea.Msg)) func() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logDebug(fmt.Sprintf("failed to create config watcher: %v", err))
		return func() {}
	}

	cwd := getEffectiveCWD()
	if err := watcher.Add(cwd); err != nil {
		logDebug(fmt.Sprintf("failed to watch %s: %v", cwd, err))
		watcher.Close()
		return func() {}
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !config.IsConfigFile(event.Name) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := config.LoadConfigFile(event.Name)
				if err != nil {
					logDebug(fmt.Sprintf("config reload failed: %v", err))
					continue
				}
				send(configReloadedMsg{cfg: cfg, path: event.Name})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logDebug(fmt.Sprintf("config watcher error: %v", err))
			}
		}
	}()

	return func() { watcher.Close() }
}

// applyConfigToSession copies the reloadable settings onto the session.
// The session id is deliberately left alone. Must run on the UI loop.
func applyConfigToSession(cfg *config.AgriAssistConfig, ctx *SessionContext) {
	if cfg.ServerURL != "" {
		ctx.ServerURL = cfg.ServerURL
	}
	if cfg.Language != "" {
		ctx.Language = normalizeLanguage(cfg.Language)
	}
	if cfg.Location != "" {
		ctx.Location = cfg.Location
	}
}
