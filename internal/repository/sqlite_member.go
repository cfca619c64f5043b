package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/alexanderramin/noise/internal/db"
	"github.com/alexanderramin/noise/internal/domain"
)

// SQLiteMemberRepo stores one JSON document per member in the members table.
type SQLiteMemberRepo struct {
	db  *sql.DB
	uow db.UnitOfWork

	// SQLite serializes writers itself, but a deferred transaction that reads
	// first can still fail with SQLITE_BUSY on upgrade. Holding writeMu makes
	// every read-modify-write in this process strictly sequential.
	writeMu sync.Mutex
}

var _ MemberRepo = (*SQLiteMemberRepo)(nil)

func NewSQLiteMemberRepo(conn *sql.DB) *SQLiteMemberRepo {
	return &SQLiteMemberRepo{db: conn, uow: db.NewSQLiteUnitOfWork(conn)}
}

// WithUnitOfWork swaps the transaction boundary. Tests use it to inject
// failures mid-write.
func (r *SQLiteMemberRepo) WithUnitOfWork(uow db.UnitOfWork) *SQLiteMemberRepo {
	r.uow = uow
	return r
}

func (r *SQLiteMemberRepo) Get(ctx context.Context, id string) (*domain.MemberRecord, error) {
	return getMember(ctx, r.db, id)
}

func (r *SQLiteMemberRepo) Update(ctx context.Context, id string, fn UpdateFunc) (*domain.MemberRecord, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	var saved *domain.MemberRecord
	err := r.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		rec, err := getMember(ctx, tx, id)
		if errors.Is(err, ErrNotFound) {
			rec = domain.NewMemberRecord()
		} else if err != nil {
			return err
		}

		if err := fn(rec); err != nil {
			return err
		}

		if err := upsertMember(ctx, tx, id, rec); err != nil {
			return err
		}
		saved = rec.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *SQLiteMemberRepo) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing member ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteMemberRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteMemberRepo) LoadSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, document FROM members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	snap := domain.NewSnapshot()
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		rec, err := decodeRecord(doc)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", id, err)
		}
		snap.Members[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating members: %w", err)
	}
	return snap, nil
}

func (r *SQLiteMemberRepo) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	return r.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM members`); err != nil {
			return fmt.Errorf("clearing members: %w", err)
		}
		for id, rec := range snap.Members {
			if err := upsertMember(ctx, tx, id, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func getMember(ctx context.Context, q db.DBTX, id string) (*domain.MemberRecord, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT document FROM members WHERE id = ?`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("loading member %s: %w", id, err)
	}
	return decodeRecord(doc)
}

func upsertMember(ctx context.Context, tx db.DBTX, id string, rec *domain.MemberRecord) error {
	doc, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	now := nowUTC()
	_, err = tx.ExecContext(ctx, `INSERT INTO members (id, document, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		id, doc, now, now)
	if err != nil {
		return fmt.Errorf("saving member %s: %w", id, err)
	}
	return nil
}
