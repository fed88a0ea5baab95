// Package builddb provides the bbolt-backed run-history ledger: build
// attempt records, an install-artifact index, and an informational
// content fingerprint per package (never used to gate a build — see
// FingerprintChanged's doc comment).
package builddb

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names for bbolt database.
const (
	BucketBuilds       = "builds"
	BucketInstallIndex = "install_index"
	BucketFingerprints = "fingerprints"
	BucketBuildRuns    = "build_runs"
	BucketRunPackages  = "run_packages"
)

// DB wraps a bbolt database for the run-history ledger.
type DB struct {
	db   *bolt.DB
	path string
}

// BuildRecord represents a single package build attempt.
type BuildRecord struct {
	UUID      string    `json:"uuid"`
	Namespace string    `json:"namespace"`
	Name      string    `json:"name"`
	Phase     string    `json:"phase"` // last pipeline phase reached
	Status    string    `json:"status"` // "running" | "success" | "failed"
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Ref formats the package reference this record is for.
func (r *BuildRecord) Ref() string { return r.Namespace + "/" + r.Name }

// OpenDB opens or creates a bbolt database at path, initialising every
// bucket the ledger needs.
func OpenDB(path string) (*DB, error) {
	bdb, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, &DatabaseError{Op: "open", Err: err}
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{BucketBuilds, BucketInstallIndex, BucketFingerprints, BucketBuildRuns, BucketRunPackages} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return &DatabaseError{Op: "create bucket", Bucket: bucket, Err: err}
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}

	return &DB{db: bdb, path: path}, nil
}

// Close closes the database. Safe to call more than once.
func (db *DB) Close() error {
	if db.db == nil {
		return nil
	}
	return db.db.Close()
}

// SaveRecord stores a BuildRecord keyed by its UUID.
func (db *DB) SaveRecord(rec *BuildRecord) error {
	if rec.UUID == "" {
		return &ValidationError{Field: "record.UUID", Err: ErrEmptyUUID}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return &RecordError{Op: "marshal", UUID: rec.UUID, Err: err}
	}

	err = db.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(BucketBuilds))
		if bucket == nil {
			return &DatabaseError{Op: "get bucket", Bucket: BucketBuilds, Err: ErrBucketNotFound}
		}
		return bucket.Put([]byte(rec.UUID), data)
	})
	if err != nil {
		return &RecordError{Op: "save", UUID: rec.UUID, Err: err}
	}
	return nil
}

// GetRecord retrieves a BuildRecord by UUID.
func (db *DB) GetRecord(uuid string) (*BuildRecord, error) {
	if uuid == "" {
		return nil, &ValidationError{Field: "uuid", Err: ErrEmptyUUID}
	}

	var rec BuildRecord
	err := db.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(BucketBuilds))
		if bucket == nil {
			return &DatabaseError{Op: "get bucket", Bucket: BucketBuilds, Err: ErrBucketNotFound}
		}
		data := bucket.Get([]byte(uuid))
		if data == nil {
			return &RecordError{Op: "get", UUID: uuid, Err: ErrRecordNotFound}
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateRecordStatus updates the status, phase, and end time of an
// existing BuildRecord in a single transaction.
func (db *DB) UpdateRecordStatus(uuid, status, phase string, endTime time.Time) error {
	if uuid == "" {
		return &ValidationError{Field: "uuid", Err: ErrEmptyUUID}
	}

	err := db.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(BucketBuilds))
		if bucket == nil {
			return &DatabaseError{Op: "get bucket", Bucket: BucketBuilds, Err: ErrBucketNotFound}
		}

		data := bucket.Get([]byte(uuid))
		if data == nil {
			return &RecordError{Op: "update status", UUID: uuid, Err: ErrRecordNotFound}
		}

		var rec BuildRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return &RecordError{Op: "unmarshal", UUID: uuid, Err: err}
		}

		rec.Status = status
		rec.Phase = phase
		rec.EndTime = endTime

		updated, err := json.Marshal(&rec)
		if err != nil {
			return &RecordError{Op: "marshal", UUID: uuid, Err: err}
		}
		return bucket.Put([]byte(uuid), updated)
	})
	if err != nil {
		return &RecordError{Op: "update status", UUID: uuid, Err: err}
	}
	return nil
}

// LatestInstall returns the UUID of the build that last staged an
// install artifact for (namespace, name), or "" if none is recorded.
func (db *DB) LatestInstall(namespace, name string) (string, error) {
	key := []byte(namespace + "/" + name)
	var uuid string

	err := db.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(BucketInstallIndex))
		if bucket == nil {
			return &DatabaseError{Op: "get bucket", Bucket: BucketInstallIndex, Err: ErrBucketNotFound}
		}
		if v := bucket.Get(key); v != nil {
			uuid = string(v)
		}
		return nil
	})
	if err != nil {
		return "", &InstallIndexError{Op: "lookup", Ref: namespace + "/" + name, Err: err}
	}
	return uuid, nil
}

// RecordInstall records that uuid's build staged the install artifact
// for (namespace, name). The build command does not call it, so the
// index holds only entries written by other callers of this method.
func (db *DB) RecordInstall(namespace, name, uuid string) error {
	key := []byte(namespace + "/" + name)

	err := db.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(BucketInstallIndex))
		if bucket == nil {
			return &DatabaseError{Op: "get bucket", Bucket: BucketInstallIndex, Err: ErrBucketNotFound}
		}
		return bucket.Put(key, []byte(uuid))
	})
	if err != nil {
		return &InstallIndexError{Op: "record", Ref: namespace + "/" + name, Err: err}
	}
	return nil
}

// FingerprintChanged reports whether currentCRC differs from the
// fingerprint stored for (namespace, name) on a previous run. This is
// informational only: it exists so an operator or monitor can see what
// changed between runs. No part of World's build dispatch consults it
// — a Package's build() always runs in full, regardless of what this
// returns (cross-invocation incremental caching is out of scope).
func (db *DB) FingerprintChanged(namespace, name string, currentCRC uint32) (bool, error) {
	stored, exists, err := db.GetFingerprint(namespace, name)
	if err != nil {
		return false, &FingerprintError{Op: "check", Ref: namespace + "/" + name, Err: err}
	}
	if !exists {
		return true, nil
	}
	return stored != currentCRC, nil
}

// UpdateFingerprint records the content fingerprint observed for
// (namespace, name) in the current run.
func (db *DB) UpdateFingerprint(namespace, name string, crc uint32) error {
	key := []byte(namespace + "/" + name)
	value := make([]byte, 4)
	value[0] = byte(crc)
	value[1] = byte(crc >> 8)
	value[2] = byte(crc >> 16)
	value[3] = byte(crc >> 24)

	err := db.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(BucketFingerprints))
		if bucket == nil {
			return &DatabaseError{Op: "get bucket", Bucket: BucketFingerprints, Err: ErrBucketNotFound}
		}
		return bucket.Put(key, value)
	})
	if err != nil {
		return &FingerprintError{Op: "update", Ref: namespace + "/" + name, Err: err}
	}
	return nil
}

// GetFingerprint retrieves the stored fingerprint for (namespace, name).
func (db *DB) GetFingerprint(namespace, name string) (uint32, bool, error) {
	key := []byte(namespace + "/" + name)
	var crc uint32
	var found bool

	err := db.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(BucketFingerprints))
		if bucket == nil {
			return &DatabaseError{Op: "get bucket", Bucket: BucketFingerprints, Err: ErrBucketNotFound}
		}

		value := bucket.Get(key)
		if value == nil {
			found = false
			return nil
		}
		if len(value) != 4 {
			return &ValidationError{Field: "fingerprint", Value: fmt.Sprintf("%d bytes", len(value)), Err: ErrCorruptedData}
		}
		crc = uint32(value[0]) | uint32(value[1])<<8 | uint32(value[2])<<16 | uint32(value[3])<<24
		found = true
		return nil
	})
	if err != nil {
		return 0, false, &FingerprintError{Op: "get", Ref: namespace + "/" + name, Err: err}
	}
	return crc, found, nil
}

// ComputeFingerprint hashes the relative path and contents of every
// regular file under dir, skipping work/VCS directories, producing a
// CRC32 that changes whenever a package's sources change regardless of
// mtimes (robust against git clone / rsync / tar resetting timestamps).
func ComputeFingerprint(dir string) (uint32, error) {
	hash := crc32.NewIEEE()

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		base := filepath.Base(path)
		if base == ".git" || base == "work" || base == ".svn" || base == "CVS" {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return &FingerprintError{Op: "compute", Ref: dir, Err: err}
		}
		hash.Write([]byte(relPath))
		hash.Write([]byte{0})

		data, err := os.ReadFile(path)
		if err != nil {
			return &FingerprintError{Op: "compute", Ref: dir, Err: err}
		}
		hash.Write(data)
		return nil
	})
	if err != nil {
		return 0, &FingerprintError{Op: "compute", Ref: dir, Err: err}
	}
	return hash.Sum32(), nil
}
