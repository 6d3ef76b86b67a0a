package repository_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/loopwork-studio/agency-api/internal/repository"
	"github.com/loopwork-studio/agency-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberSequenceRepository_NextValueStartsAtOne(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewNumberSequenceRepository(db)
	ctx := context.Background()

	first, err := repo.NextValue(ctx, "invoice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	second, err := repo.NextValue(ctx, "invoice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second)

	// sequences are independent by name
	other, err := repo.NextValue(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
}

func TestNumberSequenceRepository_ConcurrentCallersGetDistinctValues(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewNumberSequenceRepository(db)
	ctx := context.Background()

	const workers = 20
	values := make([]int64, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			values[i], errs[i] = repo.NextValue(ctx, "invoice")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i, v := range values {
		assert.Equal(t, int64(i+1), v)
	}
}
