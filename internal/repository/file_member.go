package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/alexanderramin/noise/internal/domain"
)

// FileMemberRepo keeps the whole record set in one JSON document on disk.
// Writes replace the file atomically (temp file + rename), so a crash never
// leaves a half-written document behind.
type FileMemberRepo struct {
	path string
	mu   sync.RWMutex
}

var _ MemberRepo = (*FileMemberRepo)(nil)

func NewFileMemberRepo(path string) (*FileMemberRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &FileMemberRepo{path: path}, nil
}

func (r *FileMemberRepo) Get(ctx context.Context, id string) (*domain.MemberRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, err := r.read()
	if err != nil {
		return nil, err
	}
	rec, ok := snap.Members[id]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

func (r *FileMemberRepo) Update(ctx context.Context, id string, fn UpdateFunc) (*domain.MemberRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap, err := r.read()
	if err != nil {
		return nil, err
	}
	rec, ok := snap.Members[id]
	if !ok {
		rec = domain.NewMemberRecord()
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	snap.Members[id] = rec

	if err := r.write(snap); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (r *FileMemberRepo) List(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, err := r.read()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(snap.Members))
	for id := range snap.Members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op; every write is already flushed.
func (r *FileMemberRepo) Close() error { return nil }

func (r *FileMemberRepo) LoadSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.read()
}

func (r *FileMemberRepo) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(snap)
}

// read decodes the document; a missing file is an empty record set.
func (r *FileMemberRepo) read() (*domain.Snapshot, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store: %w", err)
	}

	snap := domain.NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("parsing store: %w", err)
	}
	if snap.Members == nil {
		snap.Members = map[string]*domain.MemberRecord{}
	}
	return snap, nil
}

func (r *FileMemberRepo) write(snap *domain.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".noise-*.json")
	if err != nil {
		return fmt.Errorf("creating temp store: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp store: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replacing store: %w", err)
	}
	return nil
}
