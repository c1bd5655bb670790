// Package blobstore implements the content-addressed artifact store
// consumed by the stamp pipeline's artifact-emission step (spec.md §4.3
// step 10, §6: "store(filename, bytes, mime) -> (content_hash, url)").
// The blob store is explicitly an out-of-core external collaborator
// (spec.md §1); this package is the one concrete implementation the
// orchestrator wires in, not part of the consensus-critical core.
//
// Grounded on bsv-blockchain-teranode's stores/blob package: a small
// Store interface (factory.go's scheme-dispatched constructors) backed
// here by a single local-filesystem implementation in the style of its
// "file" scheme, since this indexer has no need for the rest of
// teranode's backend matrix (s3, gcs, minio, ...) — those backends have
// no analogous component in this spec to exercise them.
package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Store is the interface the stamp pipeline's artifact-emission step
// consumes (spec.md §6): content-addressed, idempotent storage of a
// named artifact.
type Store interface {
	Store(filename string, data []byte, mime string) (contentHash, url string, err error)
}

// FileStore persists artifacts to a local directory, content-addressed by
// the SHA-256 of their bytes. Writing the same bytes twice is a no-op
// after the first write (idempotent per spec.md §6), since the
// destination path is a pure function of the content.
type FileStore struct {
	baseDir string
	baseURL string
}

// NewFileStore returns a Store rooted at baseDir; baseURL prefixes the
// returned url (e.g. "https://stamps.example.com/files").
func NewFileStore(baseDir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: creating base dir: %w", err)
	}
	return &FileStore{baseDir: baseDir, baseURL: baseURL}, nil
}

// Store writes data under a content-addressed path and returns the hex
// SHA-256 content hash and the artifact's URL. filename is used only to
// recover the suffix from spec.md's "tx_hash.{suffix}" naming convention;
// it does not participate in the storage key, so re-storing identical
// bytes under a different filename still dedupes onto the same path.
func (s *FileStore) Store(filename string, data []byte, mime string) (string, string, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	suffix := filepath.Ext(filename)
	name := hash + suffix
	path := filepath.Join(s.baseDir, name)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", "", fmt.Errorf("blobstore: writing %s: %w", name, err)
		}
	} else if err != nil {
		return "", "", fmt.Errorf("blobstore: stat %s: %w", name, err)
	}

	url := fmt.Sprintf("%s/%s", s.baseURL, name)
	return hash, url, nil
}

// NullStore discards every write, returning the content hash and a
// synthetic URL without touching disk. Grounded on teranode's null blob
// store (stores/blob/null/null.go): useful for reparse/dry-run paths
// where artifact persistence isn't wanted.
type NullStore struct{}

func (NullStore) Store(filename string, data []byte, mime string) (string, string, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	return hash, "null://" + hash, nil
}
