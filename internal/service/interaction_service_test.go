package service

import (
	"context"
	"sync"
	"testing"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapVoteCache struct {
	mu          sync.Mutex
	values      map[string]int64
	versions    map[string]int64
	invalidated int
	rejected    int
	beforeFill  func()
}

func newMapVoteCache() *mapVoteCache {
	return &mapVoteCache{values: map[string]int64{}, versions: map[string]int64{}}
}

func (c *mapVoteCache) Get(_ context.Context, ref model.ContentRef) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[ref.String()]
	return v, ok
}

func (c *mapVoteCache) Version(_ context.Context, ref model.ContentRef) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[ref.String()]
}

func (c *mapVoteCache) Fill(_ context.Context, ref model.ContentRef, version, n int64) bool {
	if hook := c.beforeFill; hook != nil {
		c.beforeFill = nil
		hook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[ref.String()] != version {
		c.rejected++
		return false
	}
	c.values[ref.String()] = n
	return true
}

func (c *mapVoteCache) Invalidate(_ context.Context, ref model.ContentRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, ref.String())
	c.versions[ref.String()]++
	c.invalidated++
}

func exerciseRef(e *model.Exercise) model.ContentRef {
	return model.ContentRef{Kind: model.KindExercise, ID: e.ID}
}

func TestToggleVoteSequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "alice")
	ref := exerciseRef(testutil.CreateExercise(t, f.db, "two sum"))

	steps := []struct {
		value     int
		wantVote  int
		wantCount int64
	}{
		{model.VoteUp, 1, 1},
		{model.VoteUp, 0, 0},
		{model.VoteDown, -1, -1},
		{model.VoteUp, 1, 1},
	}
	for i, step := range steps {
		res, err := f.interactions.ToggleVote(ctx, user.ID, ref, step.value)
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, step.wantVote, res.UserVote, "step %d", i)
		assert.Equal(t, step.wantCount, res.VoteCount, "step %d", i)
	}

	var rows int64
	f.db.Model(&model.Vote{}).Count(&rows)
	assert.Equal(t, int64(1), rows)
}

func TestToggleVoteAggregatesUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := exerciseRef(testutil.CreateExercise(t, f.db, "graphs"))

	for i, v := range []int{1, 1, 1, -1} {
		u := testutil.CreateUser(t, f.db, string(rune('a'+i)))
		_, err := f.interactions.ToggleVote(ctx, u.ID, ref, v)
		require.NoError(t, err)
	}

	count, err := f.interactions.VoteCount(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestToggleVoteConcurrentUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := exerciseRef(testutil.CreateExercise(t, f.db, "dp"))

	const n = 8
	users := make([]*model.User, n)
	for i := range users {
		users[i] = testutil.CreateUser(t, f.db, "user"+string(rune('a'+i)))
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, u := range users {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := f.interactions.ToggleVote(ctx, id, ref, model.VoteUp)
			errs <- err
		}(u.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	count, err := f.interactions.VoteCount(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(n), count)
}

func TestVoteUniqueIndex(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, "bob")
	ex := testutil.CreateExercise(t, f.db, "arrays")

	v := model.Vote{UserID: user.ID, ContentKind: model.KindExercise, ContentID: ex.ID, Value: 1}
	require.NoError(t, f.db.Create(&v).Error)

	dup := model.Vote{UserID: user.ID, ContentKind: model.KindExercise, ContentID: ex.ID, Value: -1}
	assert.Error(t, f.db.Create(&dup).Error)
}

func TestToggleVoteValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "carol")
	ref := exerciseRef(testutil.CreateExercise(t, f.db, "trees"))

	_, err := f.interactions.ToggleVote(ctx, user.ID, ref, 2)
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	_, err = f.interactions.ToggleVote(ctx, 0, ref, 1)
	assert.ErrorIs(t, err, util.ErrUnauthenticated)

	_, err = f.interactions.ToggleVote(ctx, user.ID, model.ContentRef{Kind: model.KindExercise, ID: 999}, 1)
	assert.ErrorIs(t, err, util.ErrNotFound)

	_, err = f.interactions.ToggleVote(ctx, user.ID, model.ContentRef{Kind: "podcast", ID: ref.ID}, 1)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestToggleVoteInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := newMapVoteCache()
	f.interactions.Cache = cache

	user := testutil.CreateUser(t, f.db, "dave")
	ref := exerciseRef(testutil.CreateExercise(t, f.db, "heaps"))

	count, err := f.interactions.VoteCount(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	_, cached := cache.Get(ctx, ref)
	assert.True(t, cached)

	_, err = f.interactions.ToggleVote(ctx, user.ID, ref, model.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)

	count, err = f.interactions.VoteCount(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestVoteCountFillLosesToConcurrentToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := newMapVoteCache()
	f.interactions.Cache = cache

	user := testutil.CreateUser(t, f.db, "erin")
	ref := exerciseRef(testutil.CreateExercise(t, f.db, "tries"))

	// 读取方已经查到 0，回填之前有一次投票提交
	var toggled *VoteResult
	cache.beforeFill = func() {
		var err error
		toggled, err = f.interactions.ToggleVote(ctx, user.ID, ref, model.VoteUp)
		require.NoError(t, err)
	}

	count, err := f.interactions.VoteCount(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	require.NotNil(t, toggled)
	assert.Equal(t, int64(1), toggled.VoteCount)

	assert.Equal(t, 1, cache.rejected)
	_, cached := cache.Get(ctx, ref)
	assert.False(t, cached)

	count, err = f.interactions.VoteCount(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	cached1, ok := cache.Get(ctx, ref)
	assert.True(t, ok)
	assert.Equal(t, int64(1), cached1)
}

func TestToggleSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "erin")
	ref := exerciseRef(testutil.CreateExercise(t, f.db, "sorting"))

	saved, err := f.interactions.ToggleSave(ctx, user.ID, ref)
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = f.interactions.ToggleSave(ctx, user.ID, ref)
	require.NoError(t, err)
	assert.False(t, saved)

	saved, err = f.interactions.ToggleSave(ctx, user.ID, ref)
	require.NoError(t, err)
	assert.True(t, saved)
}

func TestSaveNotSupportedForComments(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, "frank")
	comment := &model.Comment{Content: "nice"}
	require.NoError(t, f.db.Create(comment).Error)

	_, err := f.interactions.ToggleSave(context.Background(), user.ID, model.ContentRef{Kind: model.KindComment, ID: comment.ID})
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	res, err := f.interactions.ToggleVote(context.Background(), user.ID, model.ContentRef{Kind: model.KindComment, ID: comment.ID}, model.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.VoteCount)
}

func TestCompleteUpsertAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "gina")
	ref := exerciseRef(testutil.CreateExercise(t, f.db, "linked list"))

	c, err := f.interactions.SetComplete(ctx, user.ID, ref, model.CompleteReview)
	require.NoError(t, err)
	assert.Equal(t, model.CompleteReview, c.Status)

	c, err = f.interactions.SetComplete(ctx, user.ID, ref, model.CompleteSuccess)
	require.NoError(t, err)
	assert.Equal(t, model.CompleteSuccess, c.Status)

	var rows int64
	f.db.Model(&model.Complete{}).Count(&rows)
	assert.Equal(t, int64(1), rows)

	_, err = f.interactions.SetComplete(ctx, user.ID, ref, "done")
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	require.NoError(t, f.interactions.RemoveComplete(ctx, user.ID, ref))
	assert.ErrorIs(t, f.interactions.RemoveComplete(ctx, user.ID, ref), util.ErrNotFound)
}

func TestSetRatingBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "hank")
	ref := exerciseRef(testutil.CreateExercise(t, f.db, "bits"))

	for _, bad := range []int{0, 6, -1} {
		_, err := f.interactions.SetRating(ctx, user.ID, ref, bad)
		assert.ErrorIs(t, err, util.ErrInvalidInput, "rating %d", bad)
	}

	_, err := f.interactions.SetRating(ctx, user.ID, ref, 3)
	require.NoError(t, err)
	e, err := f.interactions.SetRating(ctx, user.ID, ref, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, e.Rating)

	var rows int64
	f.db.Model(&model.Evaluate{}).Count(&rows)
	assert.Equal(t, int64(1), rows)
}

func TestReportIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "ivy")
	ref := exerciseRef(testutil.CreateExercise(t, f.db, "spam"))

	_, err := f.interactions.Report(ctx, user.ID, ref, "   ")
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	created, err := f.interactions.Report(ctx, user.ID, ref, "copied from elsewhere")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.interactions.Report(ctx, user.ID, ref, "again")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestContentStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "jack")
	b := testutil.CreateUser(t, f.db, "kate")
	ex := testutil.CreateExercise(t, f.db, "matrix")
	ref := exerciseRef(ex)

	_, err := f.interactions.ToggleVote(ctx, a.ID, ref, model.VoteUp)
	require.NoError(t, err)
	_, err = f.interactions.ToggleSave(ctx, a.ID, ref)
	require.NoError(t, err)
	_, err = f.interactions.SetComplete(ctx, a.ID, ref, model.CompleteSuccess)
	require.NoError(t, err)
	_, err = f.interactions.SetComplete(ctx, b.ID, ref, model.CompleteReview)
	require.NoError(t, err)
	_, err = f.interactions.SetRating(ctx, a.ID, ref, 2)
	require.NoError(t, err)
	_, err = f.interactions.SetRating(ctx, b.ID, ref, 5)
	require.NoError(t, err)

	stats, err := f.interactions.ContentStats(ctx, a.ID, ref)
	require.NoError(t, err)
	assert.Equal(t, "matrix", stats.Title)
	assert.Equal(t, int64(1), stats.VoteCount)
	assert.Equal(t, 1, stats.UserVote)
	assert.True(t, stats.IsSaved)
	require.NotNil(t, stats.CompletionStatus)
	assert.Equal(t, model.CompleteSuccess, *stats.CompletionStatus)
	assert.Equal(t, int64(1), stats.SuccessCount)
	assert.Equal(t, int64(1), stats.ReviewCount)
	require.NotNil(t, stats.AverageDifficulty)
	assert.InDelta(t, 3.5, *stats.AverageDifficulty, 1e-9)
	assert.Equal(t, int64(2), stats.RatingCount)

	anon, err := f.interactions.ContentStats(ctx, 0, ref)
	require.NoError(t, err)
	assert.Equal(t, 0, anon.UserVote)
	assert.False(t, anon.IsSaved)
	assert.Nil(t, anon.CompletionStatus)
	assert.Equal(t, int64(1), anon.VoteCount)
}

func TestContentStatsUnrated(t *testing.T) {
	f := newFixture(t)
	ref := exerciseRef(testutil.CreateExercise(t, f.db, "empty"))

	stats, err := f.interactions.ContentStats(context.Background(), 0, ref)
	require.NoError(t, err)
	assert.Nil(t, stats.AverageDifficulty)
	assert.Equal(t, int64(0), stats.RatingCount)
}

func TestLearningStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "leo")
	e1 := exerciseRef(testutil.CreateExercise(t, f.db, "e1"))
	e2 := exerciseRef(testutil.CreateExercise(t, f.db, "e2"))
	e3 := exerciseRef(testutil.CreateExercise(t, f.db, "e3"))

	_, err := f.interactions.SetComplete(ctx, user.ID, e1, model.CompleteSuccess)
	require.NoError(t, err)
	_, err = f.interactions.SetComplete(ctx, user.ID, e2, model.CompleteSuccess)
	require.NoError(t, err)
	_, err = f.interactions.SetComplete(ctx, user.ID, e3, model.CompleteReview)
	require.NoError(t, err)
	_, err = f.interactions.ToggleSave(ctx, user.ID, e3)
	require.NoError(t, err)

	stats, err := f.interactions.LearningStats(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.CompletedCount)
	assert.Equal(t, int64(1), stats.InReviewCount)
	assert.Equal(t, int64(1), stats.SavedCount)
}

func TestParseRef(t *testing.T) {
	ref, err := ParseRef("Lesson", "12")
	require.NoError(t, err)
	assert.Equal(t, model.ContentRef{Kind: model.KindLesson, ID: 12}, ref)

	_, err = ParseRef("lesson", "0")
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	_, err = ParseRef("song", "1")
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}
