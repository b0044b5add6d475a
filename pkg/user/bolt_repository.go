package user

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	dbDirPerm  = fs.FileMode(0o700)
	dbFilePerm = fs.FileMode(0o600)

	// dbOpenTimeout bounds the wait for the bolt file lock.
	dbOpenTimeout = 5 * time.Second
)

var usersBucket = []byte("users")

// BoltRepository persists user records as JSON values in a bbolt bucket.
// Every record is a single key, so trusted-device and history mutations are
// one read-modify-write inside a single Update transaction.
type BoltRepository struct {
	db *bolt.DB
}

// OpenBoltRepository opens (or creates) the user database at path and
// ensures the users bucket exists.
func OpenBoltRepository(path string) (*BoltRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), dbDirPerm); err != nil {
		return nil, fmt.Errorf("creating user db directory: %w", err)
	}

	db, err := bolt.Open(path, dbFilePerm, &bolt.Options{Timeout: dbOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening user db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(usersBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating users bucket: %w", err)
	}

	return &BoltRepository{db: db}, nil
}

// Close releases the underlying database file.
func (r *BoltRepository) Close() error {
	return r.db.Close()
}

func (r *BoltRepository) Get(ctx context.Context, uid string) (User, error) {
	var u User
	err := r.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(usersBucket).Get([]byte(uid))
		if raw == nil {
			return ErrUserNotFound
		}
		return json.Unmarshal(raw, &u)
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (r *BoltRepository) Create(ctx context.Context, u User) error {
	return r.put(u)
}

func (r *BoltRepository) Update(ctx context.Context, u User) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(usersBucket)
		if b.Get([]byte(u.UID)) == nil {
			return ErrUserNotFound
		}
		raw, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("encoding user %s: %w", u.UID, err)
		}
		return b.Put([]byte(u.UID), raw)
	})
}

func (r *BoltRepository) put(u User) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		raw, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("encoding user %s: %w", u.UID, err)
		}
		return tx.Bucket(usersBucket).Put([]byte(u.UID), raw)
	})
}
