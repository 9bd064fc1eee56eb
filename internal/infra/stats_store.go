package infra

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/charon-kb/charon/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const statsDBName = "stats.db"

// DayFormat is the DailyTotal.Day layout.
const DayFormat = "2006-01-02"

// EncryptedStatsStore implements domain.StatsStore using a SQLCipher
// encrypted SQLite database.
type EncryptedStatsStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedStatsStore opens (or creates) the stats database in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedStatsStore(dataDir string, key []byte) (*EncryptedStatsStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, statsDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// A wrong key only shows up on first access
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	store := &EncryptedStatsStore{db: db, dbPath: dbPath}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

// OpenStatsStore opens the store in stateDir, creating its key on first use.
func OpenStatsStore(stateDir string) (*EncryptedStatsStore, error) {
	key, err := EnsureKey(NewFileKeyProvider(stateDir))
	if err != nil {
		return nil, fmt.Errorf("stats key: %w", err)
	}
	return NewEncryptedStatsStore(stateDir, key)
}

func (s *EncryptedStatsStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS daily_totals (
		day TEXT PRIMARY KEY,
		key_presses INTEGER NOT NULL DEFAULT 0,
		reports_sent INTEGER NOT NULL DEFAULT 0,
		texts_sent INTEGER NOT NULL DEFAULT 0,
		max_wpm INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Add accumulates delta into its day. MaxWpm keeps the larger value.
func (s *EncryptedStatsStore) Add(delta domain.DailyTotal) error {
	if delta.Day == "" {
		return errors.New("daily total without day")
	}
	_, err := s.db.Exec(`
		INSERT INTO daily_totals (day, key_presses, reports_sent, texts_sent, max_wpm, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			key_presses = key_presses + excluded.key_presses,
			reports_sent = reports_sent + excluded.reports_sent,
			texts_sent = texts_sent + excluded.texts_sent,
			max_wpm = MAX(max_wpm, excluded.max_wpm),
			updated_at = excluded.updated_at`,
		delta.Day, delta.KeyPresses, delta.ReportsSent, delta.TextsSent, delta.MaxWpm, time.Now().Unix(),
	)
	return err
}

// Get returns the total for day, or a zero total with Day set.
func (s *EncryptedStatsStore) Get(day string) (domain.DailyTotal, error) {
	total := domain.DailyTotal{Day: day}
	err := s.db.QueryRow(`
		SELECT key_presses, reports_sent, texts_sent, max_wpm
		FROM daily_totals WHERE day = ?`, day,
	).Scan(&total.KeyPresses, &total.ReportsSent, &total.TextsSent, &total.MaxWpm)
	if err == sql.ErrNoRows {
		return total, nil
	}
	return total, err
}

// Recent returns up to n days, newest first.
func (s *EncryptedStatsStore) Recent(n int) ([]domain.DailyTotal, error) {
	rows, err := s.db.Query(`
		SELECT day, key_presses, reports_sent, texts_sent, max_wpm
		FROM daily_totals ORDER BY day DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DailyTotal
	for rows.Next() {
		var t domain.DailyTotal
		if err := rows.Scan(&t.Day, &t.KeyPresses, &t.ReportsSent, &t.TextsSent, &t.MaxWpm); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetPath returns the database file path.
func (s *EncryptedStatsStore) GetPath() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedStatsStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure EncryptedStatsStore implements domain.StatsStore.
var _ domain.StatsStore = (*EncryptedStatsStore)(nil)
