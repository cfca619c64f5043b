package repository

import (
	"fmt"

	"github.com/alexanderramin/noise/internal/db"
)

const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Open builds the MemberRepo for the configured backend.
func Open(backend, path string) (MemberRepo, error) {
	switch backend {
	case BackendSQLite, "":
		return openSQLiteAt(path)
	case BackendFile:
		return NewFileMemberRepo(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func openSQLiteAt(path string) (*SQLiteMemberRepo, error) {
	conn, err := db.OpenDB(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteMemberRepo(conn), nil
}
