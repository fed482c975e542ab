// Package evidence defines the external storage collaborator for
// dispute attachments. Scanning is asynchronous: the verdict arrives
// later and updates the evidence record's flags.
package evidence

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// StoredFile is the reference returned by the storage collaborator.
type StoredFile struct {
	Reference string
	URL       string
}

// Storage accepts raw file bytes and hands back a stable reference.
type Storage interface {
	Store(ctx context.Context, fileName, contentType string, data []byte) (*StoredFile, error)
}

// LocalStorage is the development implementation: it mints a reference
// without shipping bytes anywhere. Production wires the real object
// store behind the same interface.
type LocalStorage struct{}

func NewLocalStorage() *LocalStorage { return &LocalStorage{} }

func (s *LocalStorage) Store(ctx context.Context, fileName, contentType string, data []byte) (*StoredFile, error) {
	ref := uuid.NewString()
	log.Printf("stored evidence %q (%s, %d bytes) as %s", fileName, contentType, len(data), ref)
	return &StoredFile{
		Reference: ref,
		URL:       fmt.Sprintf("/evidence/%s", ref),
	}, nil
}
