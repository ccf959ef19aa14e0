// Package enrichment attaches IP reputation to reported clients, backed by
// a local SQLite cache and a rate-limited remote source.
package enrichment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS reputation (
    ip_address   TEXT PRIMARY KEY,
    abuse_score  INTEGER NOT NULL,
    country      TEXT NOT NULL,
    last_checked TEXT NOT NULL
);
`

// UnknownCountry is reported when no reputation is available.
const UnknownCountry = "N/A"

// Reputation is what is known about an address.
type Reputation struct {
	IP          string
	AbuseScore  int
	Country     string
	LastChecked time.Time
}

// Unknown returns the placeholder reputation for ip.
func Unknown(ip string) Reputation {
	return Reputation{IP: ip, Country: UnknownCountry}
}

// Cache stores reputations in SQLite.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// OpenCache opens or creates the cache database at path.
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Cache{db: db, now: time.Now}, nil
}

// Get returns the cached reputation for ip. The boolean is false on a miss.
func (c *Cache) Get(ctx context.Context, ip string) (Reputation, bool, error) {
	var (
		rep     = Reputation{IP: ip}
		checked string
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT abuse_score, country, last_checked FROM reputation WHERE ip_address = ?`, ip,
	).Scan(&rep.AbuseScore, &rep.Country, &checked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reputation{}, false, nil
		}
		return Reputation{}, false, fmt.Errorf("get reputation: %w", err)
	}

	if rep.LastChecked, err = time.Parse(time.RFC3339Nano, checked); err != nil {
		return Reputation{}, false, fmt.Errorf("parse last_checked for %s: %w", ip, err)
	}
	return rep, true, nil
}

// Put inserts or replaces the reputation of rep.IP, stamping LastChecked.
func (c *Cache) Put(ctx context.Context, rep Reputation) error {
	if rep.IP == "" {
		return errors.New("put reputation: empty address")
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reputation (ip_address, abuse_score, country, last_checked)
		VALUES (?, ?, ?, ?)`,
		rep.IP, rep.AbuseScore, rep.Country, c.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put reputation: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
