// Package store persists hash snapshots so that a client can resume its
// state after reconnecting.
//
// Three backends ship: MemoryStore for tests and single-process servers,
// FileStore (one JSON file per snapshot) and S3Store (one object per
// snapshot). All of them return errors carrying code H300 when a snapshot
// does not exist and H301 for backend failures.
package store

import (
	"context"
	"regexp"
	"sort"
	"time"

	"github.com/vango-dev/hashsync/internal/errors"
	"github.com/vango-dev/hashsync/pkg/mapping"
)

// Snapshot is the persisted state of one client.
type Snapshot struct {
	ID        string           `json:"id"`
	Hash      string           `json:"hash"`
	Data      *mapping.Mapping `json:"data"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Store persists snapshots by ID.
type Store interface {
	// Save creates or replaces the snapshot with s.ID.
	Save(ctx context.Context, s Snapshot) error

	// Load returns the snapshot with the given ID.
	Load(ctx context.Context, id string) (Snapshot, error)

	// Delete removes the snapshot. Deleting a missing snapshot is not an
	// error.
	Delete(ctx context.Context, id string) error

	// List returns the stored IDs in lexical order.
	List(ctx context.Context) ([]string, error)
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidID reports whether id can name a snapshot. IDs double as file names
// and object keys, so only letters, digits, '_' and '-' are allowed.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

func checkID(id string) error {
	if ValidID(id) {
		return nil
	}
	return errors.New("H201").
		WithDetailf("invalid snapshot id %q", id).
		WithSuggestion("Use 1-128 letters, digits, '_' or '-'")
}

func notFound(id string) error {
	return errors.New("H300").WithDetailf("snapshot %q", id)
}

func ioError(op string, err error) error {
	return errors.New("H301").WithDetail(op).Wrap(err)
}

// IsNotFound reports whether err means the snapshot does not exist.
func IsNotFound(err error) bool {
	return errors.Code(err) == errors.ErrNotFound.Code
}

func sortedIDs(ids []string) []string {
	sort.Strings(ids)
	return ids
}

// Observer is notified of every store call; *metrics.Collector implements
// it.
type Observer interface {
	StoreOp(op string, err error)
}

// Observed wraps s so that every call is reported to obs.
func Observed(s Store, obs Observer) Store {
	if obs == nil {
		return s
	}
	return &observed{next: s, obs: obs}
}

type observed struct {
	next Store
	obs  Observer
}

func (o *observed) Save(ctx context.Context, s Snapshot) error {
	err := o.next.Save(ctx, s)
	o.obs.StoreOp("save", err)
	return err
}

func (o *observed) Load(ctx context.Context, id string) (Snapshot, error) {
	s, err := o.next.Load(ctx, id)
	o.obs.StoreOp("load", err)
	return s, err
}

func (o *observed) Delete(ctx context.Context, id string) error {
	err := o.next.Delete(ctx, id)
	o.obs.StoreOp("delete", err)
	return err
}

func (o *observed) List(ctx context.Context) ([]string, error) {
	ids, err := o.next.List(ctx)
	o.obs.StoreOp("list", err)
	return ids, err
}
