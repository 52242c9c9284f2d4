package config

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// GatewayEntry is one provider's persisted configuration.
type GatewayEntry struct {
	Provider string
	Config   map[string]string
	Enabled  bool
}

// GatewayStore persists per-provider credentials and enable flags in SQLite.
// The table is a flat provider -> JSON config map; the core treats it as
// read-only input after boot.
type GatewayStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewGatewayStore opens (or creates) the SQLite gateway configuration store.
func NewGatewayStore(dbPath string) (*GatewayStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_timeout=20000&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open gateway store: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	store := &GatewayStore{db: db, path: dbPath}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize gateway store schema: %w", err)
	}

	return store, nil
}

func (s *GatewayStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS gateway_configs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider_name TEXT NOT NULL UNIQUE,
		config_data TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_gateway_provider ON gateway_configs(provider_name);
	`

	_, err := s.db.Exec(query)
	return err
}

// retryOperation retries a statement when SQLite reports the database busy.
func (s *GatewayStore) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked") {
			lastErr = err
			if attempt < maxRetries {
				backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
				time.Sleep(backoff)
				continue
			}
		} else {
			return err
		}
	}

	return fmt.Errorf("gateway store busy after %d retries: %w", maxRetries+1, lastErr)
}

// SaveConfig upserts one provider's configuration and enable flag.
func (s *GatewayStore) SaveConfig(provider string, conf map[string]string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(conf)
	if err != nil {
		return fmt.Errorf("marshal config for %s: %w", provider, err)
	}

	enabledInt := 0
	if enabled {
		enabledInt = 1
	}

	return s.retryOperation(func() error {
		_, err := s.db.Exec(`
			INSERT INTO gateway_configs (provider_name, config_data, enabled)
			VALUES (?, ?, ?)
			ON CONFLICT(provider_name) DO UPDATE SET
				config_data = excluded.config_data,
				enabled = excluded.enabled,
				updated_at = CURRENT_TIMESTAMP`,
			strings.ToLower(provider), string(data), enabledInt)
		return err
	}, 3)
}

// LoadConfig returns one provider's configuration, or found=false.
func (s *GatewayStore) LoadConfig(provider string) (map[string]string, bool, error) {
	var data string
	var enabledInt int

	err := s.db.QueryRow(
		`SELECT config_data, enabled FROM gateway_configs WHERE provider_name = ?`,
		strings.ToLower(provider),
	).Scan(&data, &enabledInt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load config for %s: %w", provider, err)
	}

	conf := make(map[string]string)
	if err := json.Unmarshal([]byte(data), &conf); err != nil {
		return nil, false, fmt.Errorf("unmarshal config for %s: %w", provider, err)
	}

	return conf, enabledInt == 1, nil
}

// LoadAll returns every persisted gateway entry.
func (s *GatewayStore) LoadAll() ([]GatewayEntry, error) {
	rows, err := s.db.Query(`SELECT provider_name, config_data, enabled FROM gateway_configs`)
	if err != nil {
		return nil, fmt.Errorf("load gateway configs: %w", err)
	}
	defer rows.Close()

	var entries []GatewayEntry
	for rows.Next() {
		var entry GatewayEntry
		var data string
		var enabledInt int
		if err := rows.Scan(&entry.Provider, &data, &enabledInt); err != nil {
			return nil, err
		}
		entry.Config = make(map[string]string)
		if err := json.Unmarshal([]byte(data), &entry.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config for %s: %w", entry.Provider, err)
		}
		entry.Enabled = enabledInt == 1
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// SeedFromEnv fills the store with configurations found in the environment
// for any provider that has no row yet. Keys are <PROVIDER>_<FIELD> with
// the field name uppercased as one word, e.g. WOOVI_BASEURI,
// WOOVI_CLIENTID, WOOVI_WEBHOOKSECRET, plus WOOVI_ENABLED for the flag.
func (s *GatewayStore) SeedFromEnv(providers []string, fields []string) {
	for _, provider := range providers {
		if _, found, err := s.LoadConfig(provider); err != nil || found {
			continue
		}

		prefix := strings.ToUpper(provider) + "_"
		conf := make(map[string]string)
		for _, field := range fields {
			if value := os.Getenv(prefix + strings.ToUpper(field)); value != "" {
				conf[field] = value
			}
		}
		if len(conf) == 0 {
			continue
		}

		enabled := GetBoolEnv(prefix+"ENABLED", false)
		if err := s.SaveConfig(provider, conf, enabled); err != nil {
			log.Printf("Warning: failed to seed config for %s: %v", provider, err)
		}
	}
}

// Close releases the underlying database handle.
func (s *GatewayStore) Close() error {
	return s.db.Close()
}
