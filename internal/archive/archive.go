// Package archive keeps the snapshots discarded by store restarts in a bbolt
// file so operators can inspect them. Nothing is ever restored from it.
package archive

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	bbolt "go.etcd.io/bbolt"

	"roomsync/server/internal/net/proto"
)

// ErrClosed is returned by operations on a closed archive.
var ErrClosed = errors.New("archive: closed")

var bucketSnapshots = []byte("snapshots")

// Snapshot is one archived restart.
type Snapshot struct {
	ID         string                      `json:"id"`
	CapturedAt time.Time                   `json:"capturedAt"`
	Objects    map[string]proto.ObjectView `json:"objects"`
}

// Archive is a bbolt-backed, append-only snapshot log.
type Archive struct {
	mu   sync.RWMutex
	bolt *bbolt.DB
}

// Open opens or creates the archive file.
func Open(path string) (*Archive, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: create buckets: %w", err)
	}
	return &Archive{bolt: db}, nil
}

// Put stores a snapshot and returns its id.
func (a *Archive) Put(ctx context.Context, capturedAt time.Time, objects map[string]proto.ObjectView) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.bolt == nil {
		return "", ErrClosed
	}

	if objects == nil {
		objects = map[string]proto.ObjectView{}
	}
	snapshot := Snapshot{ID: uuid.NewString(), CapturedAt: capturedAt.UTC(), Objects: objects}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("archive: encode snapshot: %w", err)
	}
	err = a.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put(snapshotKey(snapshot.CapturedAt, snapshot.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("archive: put snapshot: %w", err)
	}
	return snapshot.ID, nil
}

// List returns up to limit snapshots, newest first. A non-positive limit
// returns all of them.
func (a *Archive) List(limit int) ([]Snapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.bolt == nil {
		return nil, ErrClosed
	}

	var snapshots []Snapshot
	err := a.bolt.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketSnapshots).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(snapshots) >= limit {
				break
			}
			var snapshot Snapshot
			if err := json.Unmarshal(v, &snapshot); err != nil {
				return fmt.Errorf("decode snapshot %x: %w", k, err)
			}
			snapshots = append(snapshots, snapshot)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	return snapshots, nil
}

// Path returns the filesystem path of the archive file.
func (a *Archive) Path() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.bolt == nil {
		return ""
	}
	return a.bolt.Path()
}

func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bolt == nil {
		return nil
	}
	err := a.bolt.Close()
	a.bolt = nil
	return err
}

// snapshotKey orders entries by capture time; the id keeps keys unique.
func snapshotKey(capturedAt time.Time, id string) []byte {
	key := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(key, uint64(capturedAt.UnixNano()))
	return append(key, id...)
}
