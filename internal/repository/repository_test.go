package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docrefine/constants"
	"github.com/joseph-ayodele/docrefine/internal/common"
	"github.com/joseph-ayodele/docrefine/internal/entity"
)

type factory func(t *testing.T, maxDocuments int) DocumentRepository

func factories() map[string]factory {
	return map[string]factory{
		"memory": func(t *testing.T, maxDocuments int) DocumentRepository {
			return NewMemoryRepository(maxDocuments, nil)
		},
		"sqlite": func(t *testing.T, maxDocuments int) DocumentRepository {
			r, err := Open(context.Background(), Config{
				Driver:       common.DriverSQLite,
				DSN:          ":memory:",
				MaxDocuments: maxDocuments,
			}, nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = r.Close() })
			return r
		},
	}
}

func newDoc(name string) entity.NewDocument {
	return entity.NewDocument{
		OriginalName:    name,
		FileType:        constants.MediaTypeText,
		FileSize:        42,
		OriginalContent: "she go to school",
		WritingStyle:    constants.Professional,
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, newRepo factory)) {
	for name, f := range factories() {
		t.Run(name, func(t *testing.T) { fn(t, f) })
	}
}

func TestCreateAssignsIncreasingIDs(t *testing.T) {
	forEachStore(t, func(t *testing.T, newRepo factory) {
		ctx := context.Background()
		repo := newRepo(t, 0)

		for want := int64(1); want <= 3; want++ {
			d, err := repo.Create(ctx, newDoc("a.txt"))
			require.NoError(t, err)
			assert.Equal(t, want, d.ID)
			assert.Equal(t, constants.StatusProcessing, d.Status)
			assert.Nil(t, d.CorrectedContent)
			assert.Nil(t, d.Corrections)
			assert.False(t, d.CreatedAt.IsZero())
		}

		// ids are never reused, even after deleting the highest one
		require.NoError(t, repo.Delete(ctx, 3))
		d, err := repo.Create(ctx, newDoc("b.txt"))
		require.NoError(t, err)
		assert.Equal(t, int64(4), d.ID)
	})
}

func TestGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, newRepo factory) {
		ctx := context.Background()
		repo := newRepo(t, 0)

		_, err := repo.Get(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, err, common.ErrNotFound)

		created, err := repo.Create(ctx, newDoc("a.txt"))
		require.NoError(t, err)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "a.txt", got.OriginalName)
		assert.Equal(t, "she go to school", got.OriginalContent)
		assert.Equal(t, constants.Professional, got.WritingStyle)
		assert.Equal(t, int64(42), got.FileSize)

		// returned copies are detached from stored state
		got.OriginalContent = "mutated"
		again, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "she go to school", again.OriginalContent)
	})
}

func TestUpdateCompleted(t *testing.T) {
	forEachStore(t, func(t *testing.T, newRepo factory) {
		ctx := context.Background()
		repo := newRepo(t, 0)
		d, err := repo.Create(ctx, newDoc("a.txt"))
		require.NoError(t, err)

		c := entity.Corrections{Grammar: 2, Style: 1, Clarity: 0}
		updated, err := repo.Update(ctx, d.ID, entity.CompletedPatch("She goes to school.", c))
		require.NoError(t, err)
		assert.Equal(t, constants.StatusCompleted, updated.Status)

		got, err := repo.Get(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.StatusCompleted, got.Status)
		require.NotNil(t, got.CorrectedContent)
		assert.Equal(t, "She goes to school.", *got.CorrectedContent)
		require.NotNil(t, got.Corrections)
		assert.Equal(t, c, *got.Corrections)
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

		// terminal documents never move again
		_, err = repo.Update(ctx, d.ID, entity.FailedPatch())
		assert.ErrorIs(t, err, entity.ErrIllegalTransition)
		_, err = repo.Update(ctx, d.ID, entity.CompletedPatch("other", c))
		assert.ErrorIs(t, err, entity.ErrIllegalTransition)

		got, err = repo.Get(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, "She goes to school.", *got.CorrectedContent)
	})
}

func TestUpdateFailed(t *testing.T) {
	forEachStore(t, func(t *testing.T, newRepo factory) {
		ctx := context.Background()
		repo := newRepo(t, 0)
		d, err := repo.Create(ctx, newDoc("a.txt"))
		require.NoError(t, err)

		_, err = repo.Update(ctx, d.ID, entity.FailedPatch())
		require.NoError(t, err)

		got, err := repo.Get(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.StatusFailed, got.Status)
		assert.Nil(t, got.CorrectedContent)
		assert.Nil(t, got.Corrections)

		_, err = repo.Update(ctx, 1234, entity.FailedPatch())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteAndList(t *testing.T) {
	forEachStore(t, func(t *testing.T, newRepo factory) {
		ctx := context.Background()
		repo := newRepo(t, 0)

		docs, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, docs)

		for _, n := range []string{"a.txt", "b.txt", "c.txt"} {
			_, err := repo.Create(ctx, newDoc(n))
			require.NoError(t, err)
		}
		require.NoError(t, repo.Delete(ctx, 2))
		assert.ErrorIs(t, repo.Delete(ctx, 2), ErrNotFound)

		_, err = repo.Get(ctx, 2)
		assert.ErrorIs(t, err, ErrNotFound)

		docs, err = repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, int64(1), docs[0].ID)
		assert.Equal(t, int64(3), docs[1].ID)
		assert.Equal(t, map[constants.DocumentStatus]int{constants.StatusProcessing: 2}, CountByStatus(docs))
	})
}

func TestMaxDocumentsEviction(t *testing.T) {
	forEachStore(t, func(t *testing.T, newRepo factory) {
		ctx := context.Background()
		repo := newRepo(t, 2)

		d1, err := repo.Create(ctx, newDoc("1.txt"))
		require.NoError(t, err)
		_, err = repo.Create(ctx, newDoc("2.txt"))
		require.NoError(t, err)

		_, err = repo.Create(ctx, newDoc("3.txt"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStoreFull)
		assert.ErrorIs(t, err, common.ErrUnavailable)

		_, err = repo.Update(ctx, d1.ID, entity.FailedPatch())
		require.NoError(t, err)

		d3, err := repo.Create(ctx, newDoc("3.txt"))
		require.NoError(t, err)
		assert.Equal(t, int64(3), d3.ID)

		_, err = repo.Get(ctx, d1.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		docs, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})
}

func TestConcurrentCreatesGetDistinctIDs(t *testing.T) {
	forEachStore(t, func(t *testing.T, newRepo factory) {
		ctx := context.Background()
		repo := newRepo(t, 0)

		const n = 20
		ids := make(chan int64, n)
		errs := make(chan error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d, err := repo.Create(ctx, newDoc("c.txt"))
				if err != nil {
					errs <- err
					return
				}
				ids <- d.ID
			}()
		}
		wg.Wait()
		close(ids)
		close(errs)
		for err := range errs {
			t.Fatalf("create failed: %v", err)
		}

		seen := map[int64]bool{}
		for id := range ids {
			assert.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
			assert.True(t, id >= 1 && id <= n)
		}
		assert.Len(t, seen, n)
	})
}

func TestMemoryRepository_CanceledContext(t *testing.T) {
	repo := NewMemoryRepository(0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := repo.Create(ctx, newDoc("a.txt"))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNew_SelectsDriver(t *testing.T) {
	ctx := context.Background()

	repo, err := New(ctx, Config{}, nil)
	require.NoError(t, err)
	_, ok := repo.(*memoryRepository)
	assert.True(t, ok)

	repo, err = New(ctx, Config{Driver: common.DriverSQLite, DSN: ":memory:"}, nil)
	require.NoError(t, err)
	sqlRepo, ok := repo.(*SQLRepository)
	require.True(t, ok)
	assert.NoError(t, sqlRepo.HealthCheck(ctx, 0))
	require.NoError(t, repo.Close())

	_, err = New(ctx, Config{Driver: "mongo"}, nil)
	assert.Error(t, err)
}
