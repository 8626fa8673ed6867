// Package history stores the command/reply transcript of client sessions.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"
)

// one command sent during a session and what came back
type Entry struct {
	SessionID  string    `json:"session_id"`
	Seq        int       `json:"seq"`
	Command    string    `json:"command"`
	Reply      string    `json:"reply"`
	PeerClosed bool      `json:"peer_closed"`
	At         time.Time `json:"at"`
}

// receives transcript entries as the session runs
type Recorder interface {
	Record(e Entry) error
	Close() error
}

// recorder used when no history dir is configured
type Nop struct{}

func (Nop) Record(Entry) error { return nil }
func (Nop) Close() error { return nil }

// pebble-backed transcript store
type Store struct {
	db *pebble.DB
}

// opens (or creates) the store in dir
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open history store %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// opens an existing store for reading only. a missing dir is an error, nothing is created
func OpenReadOnly(dir string) (*Store, error) {
	_, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store %s: %w", dir, err)
	}

	db, err := pebble.Open(dir, &pebble.Options{ReadOnly: true, ErrorIfNotExists: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open history store %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// keys sort by session, then by sequence number
func entryKey(sessionID string, seq int) []byte {
	return []byte(fmt.Sprintf("%s/%010d", sessionID, seq))
}

// writes e durably
func (s *Store) Record(e Entry) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}
	return s.db.Set(entryKey(e.SessionID, e.Seq), value, pebble.Sync)
}

// returns the entries of one session in the order they were sent
func (s *Store) Entries(sessionID string) ([]Entry, error) {
	prefix := []byte(sessionID + "/")
	upper := []byte(sessionID + "0") // '0' sorts right after '/'

	return s.scan(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
}

// returns every stored entry, oldest first
func (s *Store) All() ([]Entry, error) {
	entries, err := s.scan(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].At.Before(entries[j].At)
	})
	return entries, nil
}

func (s *Store) scan(opts *pebble.IterOptions) ([]Entry, error) {
	iter, err := s.db.NewIter(opts)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entries []Entry
	for iter.First(); iter.Valid(); iter.Next() {
		var e Entry
		err := json.Unmarshal(iter.Value(), &e)
		if err != nil {
			return nil, fmt.Errorf("corrupt entry %q: %w", iter.Key(), err)
		}
		entries = append(entries, e)
	}

	return entries, iter.Error()
}

// flushes and closes the store
func (s *Store) Close() error {
	return s.db.Close()
}
