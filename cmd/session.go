package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

// SessionContext carries everything a flow needs to talk to the server.
// Flows take it as a parameter instead of reading globals so they can be
// tested with a mock HTTPClient.
type SessionContext struct {
	ServerURL  string
	SessionID  string
	Language   string
	Location   string
	HTTPClient HTTPClient
}

func newDefaultContextFromGlobals() *SessionContext {
	return &SessionContext{
		ServerURL:  serverURL,
		SessionID:  newSessionID(),
		Language:   normalizeLanguage(language),
		Location:   location,
		HTTPClient: getHTTPClient(),
	}
}

// newSessionID builds the client correlation token sent with chat requests.
// It is generated once per process and intentionally not reused across runs.
func newSessionID() string {
	suffix := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), suffix)
}

// ToggleLanguage flips between the two supported request languages and
// returns the new value. It only affects future requests.
func (c *SessionContext) ToggleLanguage() string {
	if c.Language == "sw" {
		c.Language = "en"
	} else {
		c.Language = "sw"
	}
	return c.Language
}

// LanguageLabel is the visible label for the current language flag.
func (c *SessionContext) LanguageLabel() string {
	if c.Language == "sw" {
		return "SW"
	}
	return "EN"
}

func normalizeLanguage(lang string) string {
	if strings.EqualFold(strings.TrimSpace(lang), "sw") {
		return "sw"
	}
	return "en"
}

// SessionRecord is the on-disk record of the most recent session, kept for
// diagnostics. The in-request session id itself lives only in memory.
type SessionRecord struct {
	SessionID string `yaml:"session_id"`
	Timestamp string `yaml:"timestamp"`
}

func sessionRecordPath() (string, error) {
	dataDir, err := getDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "cli", "session.yaml"), nil
}

// writeSessionRecord persists the current session id. Best effort; callers
// treat failures as debug noise, not errors.
func writeSessionRecord(sessionID string) error {
	if sessionID == "" {
		return nil
	}

	path, err := sessionRecordPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	record := SessionRecord{
		SessionID: sessionID,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	data, err := yaml.Marshal(&record)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session record: %w", err)
	}
	return nil
}

// readSessionRecord reads the last persisted session record if one exists.
// A missing file or an empty session id yields (nil, nil).
func readSessionRecord() (*SessionRecord, error) {
	path, err := sessionRecordPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session record: %w", err)
	}

	var record SessionRecord
	if err := yaml.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse session record: %w", err)
	}
	if record.SessionID == "" {
		return nil, nil
	}
	return &record, nil
}
