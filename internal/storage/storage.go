// Package storage keeps the model registry: the set of model artifact
// versions a deployment knows about and which one is active. It uses BoltDB
// as the underlying storage engine so the CLI and the server share one file.
//
// The registry is consulted only at startup and by operators. Requests and
// predictions are never stored.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"review-sentiment/internal/ml"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const (
	versionsBucket = "versions" // Bucket name for model versions, keyed by insertion sequence
	metaBucket     = "meta"     // Bucket name for registry state
	activeKey      = "active"   // Key in metaBucket holding the active version name
)

var (
	ErrVersionNotFound = errors.New("model version not found")
	ErrVersionExists   = errors.New("model version already registered")
	ErrNoActiveVersion = errors.New("no active model version")
	ErrNoPrevious      = errors.New("no previous version available for rollback")
)

// ModelVersion is one registered pair of model and vocabulary artifacts.
type ModelVersion struct {
	ID        string             `json:"id"`
	Version   string             `json:"version"`
	ModelPath string             `json:"model_path"`
	VocabPath string             `json:"vocab_path"`
	CreatedAt time.Time          `json:"created_at"`
	Metrics   ml.TrainingMetrics `json:"metrics"`
	IsActive  bool               `json:"is_active"`
	Notes     string             `json:"notes,omitempty"`
}

// Store provides persistent storage for the model registry using BoltDB.
type Store struct {
	db    *bbolt.DB
	clock clockwork.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for registration timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) { s.clock = clock }
}

// Open opens (or creates) the registry database at path. Parent directories
// are created as needed.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open registry %s: %w", path, err)
	}

	// Create buckets
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(versionsBucket)); err != nil {
			return fmt.Errorf("create versions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(metaBucket)); err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// AddVersion registers a new version. An empty Version is replaced by a
// timestamp; ID and CreatedAt are always assigned by the store. The new
// version is not activated.
func (s *Store) AddVersion(v ModelVersion) (ModelVersion, error) {
	if v.ModelPath == "" || v.VocabPath == "" {
		return ModelVersion{}, fmt.Errorf("model and vocabulary paths are required")
	}

	now := s.clock.Now().UTC()
	v.ID = uuid.NewString()
	v.CreatedAt = now
	v.IsActive = false
	if v.Version == "" {
		v.Version = now.Format("20060102-150405")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(versionsBucket))

		if _, _, err := findVersion(b, v.Version); err == nil {
			return fmt.Errorf("%w: %s", ErrVersionExists, v.Version)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}

		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal version: %w", err)
		}
		return b.Put(seqKey(seq), data)
	})
	if err != nil {
		return ModelVersion{}, err
	}

	log.Info().Str("version", v.Version).Str("id", v.ID).Str("model_path", v.ModelPath).Msg("Registered model version")
	return v, nil
}

// ListVersions returns all versions in registration order, oldest first.
func (s *Store) ListVersions() ([]ModelVersion, error) {
	var versions []ModelVersion
	err := s.db.View(func(tx *bbolt.Tx) error {
		active := string(tx.Bucket([]byte(metaBucket)).Get([]byte(activeKey)))
		return tx.Bucket([]byte(versionsBucket)).ForEach(func(_, data []byte) error {
			var v ModelVersion
			if err := json.Unmarshal(data, &v); err != nil {
				return fmt.Errorf("unmarshal version: %w", err)
			}
			v.IsActive = v.Version == active
			versions = append(versions, v)
			return nil
		})
	})
	return versions, err
}

// ActivateVersion makes version the active one.
func (s *Store) ActivateVersion(version string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if _, _, err := findVersion(tx.Bucket([]byte(versionsBucket)), version); err != nil {
			return err
		}
		return tx.Bucket([]byte(metaBucket)).Put([]byte(activeKey), []byte(version))
	})
	if err != nil {
		return err
	}

	log.Info().Str("version", version).Msg("Activated model version")
	return nil
}

// ActiveVersion returns the active version.
func (s *Store) ActiveVersion() (*ModelVersion, error) {
	var v *ModelVersion
	err := s.db.View(func(tx *bbolt.Tx) error {
		active := tx.Bucket([]byte(metaBucket)).Get([]byte(activeKey))
		if active == nil {
			return ErrNoActiveVersion
		}
		_, found, err := findVersion(tx.Bucket([]byte(versionsBucket)), string(active))
		if err != nil {
			return err
		}
		found.IsActive = true
		v = &found
		return nil
	})
	return v, err
}

// Rollback activates the version registered immediately before the active
// one and returns it.
func (s *Store) Rollback() (*ModelVersion, error) {
	var prev *ModelVersion
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket([]byte(metaBucket))
		active := meta.Get([]byte(activeKey))
		if active == nil {
			return ErrNoActiveVersion
		}

		b := tx.Bucket([]byte(versionsBucket))
		key, _, err := findVersion(b, string(active))
		if err != nil {
			return err
		}

		c := b.Cursor()
		c.Seek(key)
		k, data := c.Prev()
		if k == nil {
			return ErrNoPrevious
		}

		var v ModelVersion
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("unmarshal version: %w", err)
		}
		if err := meta.Put([]byte(activeKey), []byte(v.Version)); err != nil {
			return err
		}
		v.IsActive = true
		prev = &v
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Warn().Str("version", prev.Version).Msg("Rolled back model version")
	return prev, nil
}

func findVersion(b *bbolt.Bucket, version string) ([]byte, ModelVersion, error) {
	c := b.Cursor()
	for k, data := c.First(); k != nil; k, data = c.Next() {
		var v ModelVersion
		if err := json.Unmarshal(data, &v); err != nil {
			continue // Skip malformed records
		}
		if v.Version == version {
			return k, v, nil
		}
	}
	return nil, ModelVersion{}, fmt.Errorf("%w: %s", ErrVersionNotFound, version)
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
