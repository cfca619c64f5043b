package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alexanderramin/noise/internal/db"
	"github.com/alexanderramin/noise/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newConcurrentTestDB creates a file-backed SQLite database in a temp directory.
// Unlike :memory:, a file-backed DB shares state across all connections in the
// pool, which is required to test real concurrent access with WAL mode.
func newConcurrentTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "concurrent_test.db")
	database, err := db.OpenDB(dbPath)
	require.NoError(t, err, "failed to create concurrent test database")
	t.Cleanup(func() { database.Close() })
	return database
}

func concurrentRepos(t *testing.T) map[string]MemberRepo {
	t.Helper()
	fileRepo, err := NewFileMemberRepo(filepath.Join(t.TempDir(), "noise.json"))
	require.NoError(t, err)
	return map[string]MemberRepo{
		"sqlite": NewSQLiteMemberRepo(newConcurrentTestDB(t)),
		"file":   fileRepo,
	}
}

// appendMessage mimics one message handler: append history and add a point.
func appendMessage(content string) UpdateFunc {
	return func(rec *domain.MemberRecord) error {
		rec.History = append(rec.History, domain.HistoryEntry{
			Content:   content,
			Timestamp: time.Now().UTC(),
		})
		rec.Points++
		return nil
	}
}

// TestConcurrentAccess_TwoHandlersSameMember verifies that two message
// handlers racing on one member both land their history entry.
func TestConcurrentAccess_TwoHandlersSameMember(t *testing.T) {
	for name, repo := range concurrentRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			start := make(chan struct{})

			var wg sync.WaitGroup
			for _, msg := range []string{"first", "second"} {
				wg.Add(1)
				go func(content string) {
					defer wg.Done()
					<-start
					if _, err := repo.Update(ctx, "m1", appendMessage(content)); err != nil {
						t.Errorf("update %q: %v", content, err)
					}
				}(msg)
			}
			close(start)
			wg.Wait()

			rec, err := repo.Get(ctx, "m1")
			require.NoError(t, err)
			require.Len(t, rec.History, 2)
			assert.Equal(t, 2, rec.Points)

			contents := []string{rec.History[0].Content, rec.History[1].Content}
			assert.ElementsMatch(t, []string{"first", "second"}, contents)
		})
	}
}

// TestConcurrentAccess_ManyWritersNoLostUpdates hammers a few members from
// many goroutines and checks every increment survives.
func TestConcurrentAccess_ManyWritersNoLostUpdates(t *testing.T) {
	for name, repo := range concurrentRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const writers = 8
			const perWriter = 10
			members := []string{"a", "b", "c"}

			var wg sync.WaitGroup
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(writer int) {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						id := members[(writer+i)%len(members)]
						_, err := repo.Update(ctx, id, func(rec *domain.MemberRecord) error {
							rec.KeywordStats["AI"]++
							return appendMessage(fmt.Sprintf("w%d-%d", writer, i))(rec)
						})
						if err != nil {
							t.Errorf("writer %d: %v", writer, err)
							return
						}
					}
				}(w)
			}

			// Readers run alongside and must never see a torn record.
			for r := 0; r < 3; r++ {
				wg.Add(1)
				go func(reader int) {
					defer wg.Done()
					for i := 0; i < 10; i++ {
						snap, err := repo.LoadSnapshot(ctx)
						if err != nil {
							t.Errorf("reader %d: %v", reader, err)
							return
						}
						for id, rec := range snap.Members {
							if rec.Points != len(rec.History) {
								t.Errorf("reader %d: member %s has %d points for %d entries",
									reader, id, rec.Points, len(rec.History))
							}
						}
					}
				}(r)
			}
			wg.Wait()

			snap, err := repo.LoadSnapshot(ctx)
			require.NoError(t, err)

			total := 0
			for _, rec := range snap.Members {
				total += len(rec.History)
				assert.Equal(t, len(rec.History), rec.KeywordStats["AI"])
			}
			assert.Equal(t, writers*perWriter, total)
		})
	}
}
