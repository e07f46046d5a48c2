package blob

import (
	"context"
	"errors"
)

var ErrObjectNotFound = errors.New("blob object not found")

// Store is content-addressed object storage. Put never overwrites an existing key.
type Store interface {
	Put(ctx context.Context, key string, body []byte, meta Metadata) error
	Get(ctx context.Context, key string) ([]byte, Metadata, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Repository describes blob record persistence needs from use cases.
type Repository interface {
	FindByEntityTournament(ctx context.Context, entityID string, tournamentID int64) (Record, bool, error)
	FindByBlobKey(ctx context.Context, blobKey string) (Record, bool, error)
	FindByURL(ctx context.Context, url string) (Record, bool, error)
	GetByID(ctx context.Context, id string) (Record, bool, error)
	Create(ctx context.Context, r Record) error
	Update(ctx context.Context, r Record) error
}
