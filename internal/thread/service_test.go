package thread_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pm-relay/internal/db"
	"pm-relay/internal/platform"
	"pm-relay/internal/platform/platformtest"
	"pm-relay/internal/storetest"
	"pm-relay/internal/thread"
)

const groupID = int64(-1001)

var ann = platform.User{ID: 42, FirstName: "Ann", LastName: "Lee", Username: "ann"}

func setup(t *testing.T) (*thread.Service, *platformtest.Fake, *storetest.Memory) {
	t.Helper()
	api := platformtest.New()
	mem := storetest.New()
	svc := thread.NewService(mem.Threads(), api, groupID, zap.NewNop(), nil)
	return svc, api, mem
}

func TestEnsureCreatesThreadOnce(t *testing.T) {
	svc, api, mem := setup(t)
	ctx := context.Background()

	id, err := svc.Ensure(ctx, ann)
	require.NoError(t, err)
	assert.Equal(t, []int{id}, api.CreatedSnapshot())
	assert.Equal(t, 1, mem.ThreadCount())

	again, err := svc.Ensure(ctx, ann)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Len(t, api.CreatedSnapshot(), 1)

	row, err := mem.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee (ID: 42)", row.Label)
	assert.Equal(t, groupID, row.OriginGroupID)
}

func TestEnsureConcurrentCallsCreateOneThread(t *testing.T) {
	svc, api, mem := setup(t)

	var wg sync.WaitGroup
	ids := make([]int, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := svc.Ensure(context.Background(), ann)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	assert.Len(t, api.CreatedSnapshot(), 1)
	assert.Equal(t, 1, mem.ThreadCount())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestEnsurePostsAndPinsCard(t *testing.T) {
	svc, api, _ := setup(t)

	id, err := svc.Ensure(context.Background(), ann)
	require.NoError(t, err)

	texts := api.SentByMethod("SendText")
	require.Len(t, texts, 1, "no profile photo falls back to text")
	assert.Equal(t, id, texts[0].ThreadID)
	assert.Contains(t, texts[0].Text, "<code>42</code>")
	assert.Equal(t, []platform.Ref{texts[0].Refs[0]}, api.Pinned)
}

func TestEnsureCardWithPhoto(t *testing.T) {
	svc, api, _ := setup(t)
	api.ProfileFileID = "photo-1"

	_, err := svc.Ensure(context.Background(), ann)
	require.NoError(t, err)

	media := api.SentByMethod("SendMedia")
	require.Len(t, media, 1)
	assert.Equal(t, "photo-1", media[0].Media[0].FileID)
	assert.Empty(t, api.SentByMethod("SendText"))
}

func TestEnsureCardFailuresAreNotFatal(t *testing.T) {
	svc, api, _ := setup(t)
	api.ProfileFileID = "photo-1"
	api.FailNext("SendMedia", errors.New("boom"))
	api.FailNext("PinMessage", errors.New("no pin rights"))

	_, err := svc.Ensure(context.Background(), ann)
	require.NoError(t, err)
	assert.Len(t, api.SentByMethod("SendText"), 1)
	assert.Empty(t, api.Pinned)
}

func TestEnsureRebuildsThreadFromOtherGroup(t *testing.T) {
	svc, api, mem := setup(t)
	ctx := context.Background()
	require.NoError(t, mem.Threads().Upsert(ctx, &thread.Thread{UserID: ann.ID, ThreadID: 7, Label: "old", OriginGroupID: -999}))

	id, err := svc.Ensure(ctx, ann)
	require.NoError(t, err)
	assert.NotEqual(t, 7, id)
	assert.Len(t, api.CreatedSnapshot(), 1)

	_, err = mem.GetByID(ctx, 7)
	assert.ErrorIs(t, err, thread.ErrNotFound)
	assert.Equal(t, 1, mem.ThreadCount())
}

func TestEnsureCreationFailureIsFatal(t *testing.T) {
	svc, api, mem := setup(t)
	api.FailNext("CreateThread", errors.New("no forum rights"))

	_, err := svc.Ensure(context.Background(), ann)
	assert.Error(t, err)
	assert.Equal(t, 0, mem.ThreadCount())
}

func TestEnsureRollsBackWhenSaveFails(t *testing.T) {
	svc, api, mem := setup(t)
	mem.FailUpsertThread(1)

	_, err := svc.Ensure(context.Background(), ann)
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrPersistence)

	created := api.CreatedSnapshot()
	require.Len(t, created, 1)
	assert.Equal(t, created, api.Removed, "orphaned platform thread is deleted")
	assert.Empty(t, api.Sent, "no card for a rolled back thread")
}

func TestValidate(t *testing.T) {
	svc, api, _ := setup(t)
	ctx := context.Background()
	id, err := svc.Ensure(ctx, ann)
	require.NoError(t, err)

	live, err := svc.Validate(ctx, id)
	require.NoError(t, err)
	assert.True(t, live)

	api.DropThread(id)
	live, err = svc.Validate(ctx, id)
	require.NoError(t, err)
	assert.False(t, live)

	api.AddThread(id, "x")
	api.FailNext("EditThread", platform.Wrap(platform.ErrNotModified, errors.New("TOPIC_NOT_MODIFIED")))
	live, err = svc.Validate(ctx, id)
	require.NoError(t, err)
	assert.True(t, live, "not modified means the thread exists")
}

func TestRemove(t *testing.T) {
	svc, api, mem := setup(t)
	ctx := context.Background()
	id, err := svc.Ensure(ctx, ann)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, id))
	assert.False(t, api.HasThread(id))
	assert.Equal(t, 0, mem.ThreadCount())

	assert.ErrorIs(t, svc.Remove(ctx, id), thread.ErrNotFound)
}

func TestLookupIgnoresOtherGroups(t *testing.T) {
	svc, _, mem := setup(t)
	ctx := context.Background()
	require.NoError(t, mem.Threads().Upsert(ctx, &thread.Thread{UserID: 1, ThreadID: 9, Label: "x", OriginGroupID: -5}))

	_, err := svc.Lookup(ctx, 9)
	assert.ErrorIs(t, err, thread.ErrNotFound)
}

func TestUpsertIsIdempotent(t *testing.T) {
	_, _, mem := setup(t)
	ctx := context.Background()
	row := thread.Thread{UserID: 1, ThreadID: 9, Label: "x", OriginGroupID: groupID}
	a, b := row, row
	require.NoError(t, mem.Threads().Upsert(ctx, &a))
	require.NoError(t, mem.Threads().Upsert(ctx, &b))
	assert.Equal(t, 1, mem.ThreadCount())
}

func TestLabelTruncates(t *testing.T) {
	long := platform.User{ID: 1}
	for i := 0; i < 200; i++ {
		long.FirstName += "é"
	}
	label := thread.Label(long)
	assert.Equal(t, 128, len([]rune(label)))
	assert.Contains(t, label, "(ID: 1)")

	assert.Equal(t, "@ann (ID: 3)", thread.Label(platform.User{ID: 3, Username: "ann"}))
}
