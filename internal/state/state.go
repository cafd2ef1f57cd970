// Package state persists the small amount of chat state that survives
// restarts: the channel directory cache (for instant rendering before the
// first fetch returns) and per-channel read cursors. Messages and session
// credentials are never written to disk.
package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/snapie/chat/internal/chat"
)

const (
	// stateDirPerm is the permission mode for the state directory.
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	appBucket      = []byte("app")
	channelsBucket = []byte("channels")
	cursorsBucket  = []byte("cursors")

	activeChannelKey = []byte("active_channel")
)

// Store wraps a bbolt database for all persistent chat state.
type Store struct {
	db *bolt.DB
}

// Open opens the state database at path, creating it and its parent
// directory if needed. All buckets are created on open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(appBucket); err != nil {
			return err
		}

		if _, err := tx.CreateBucketIfNotExists(channelsBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(cursorsBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ActiveChannelID returns the last selected channel ID, or empty string.
func (s *Store) ActiveChannelID() string {
	var id string

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(activeChannelKey)
		if v != nil {
			id = string(v)
		}

		return nil
	})

	return id
}

// SetActiveChannelID persists the last selected channel ID.
func (s *Store) SetActiveChannelID(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(activeChannelKey, []byte(id))
	})
}

// SaveChannels replaces the cached channel directory with the given
// snapshot. The cache is cleared first so channels the account left do not
// linger.
func (s *Store) SaveChannels(channels []chat.Channel) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(channelsBucket); err != nil {
			return err
		}

		b, err := tx.CreateBucket(channelsBucket)
		if err != nil {
			return err
		}

		for _, ch := range channels {
			data, err := json.Marshal(ch)
			if err != nil {
				return err
			}

			if err := b.Put([]byte(ch.ID), data); err != nil {
				return err
			}
		}

		return nil
	})
}

// Channels returns all cached channel entries.
func (s *Store) Channels() ([]chat.Channel, error) {
	var channels []chat.Channel

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(channelsBucket)

		return b.ForEach(func(k, v []byte) error {
			var ch chat.Channel
			if err := json.Unmarshal(v, &ch); err != nil {
				return err
			}

			channels = append(channels, ch)

			return nil
		})
	})

	return channels, err
}

// ReadCursor returns the persisted read cursor for a channel, or zero.
func (s *Store) ReadCursor(channelID string) (int64, error) {
	var cursor int64

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(cursorsBucket).Get([]byte(channelID))
		if v == nil {
			return nil
		}

		return json.Unmarshal(v, &cursor)
	})

	return cursor, err
}

// SetReadCursor persists the read cursor for a channel.
func (s *Store) SetReadCursor(channelID string, lastPostAt int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(lastPostAt)
		if err != nil {
			return err
		}

		return tx.Bucket(cursorsBucket).Put([]byte(channelID), data)
	})
}

// Clear wipes all persisted chat state. Called on session invalidation so
// nothing from the previous identity survives.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{appBucket, channelsBucket, cursorsBucket} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}

			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}

		return nil
	})
}
