package repository

import (
	"context"
	"testing"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveContent(t *testing.T) {
	db := testutil.DB(t)
	repo := NewContentRepository(db)
	ctx := context.Background()

	ex := testutil.CreateExercise(t, db, "binary search")
	exam := testutil.CreateExam(t, db, "final")
	sol := &model.Solution{ExerciseID: ex.ID, Content: "use two pointers"}
	require.NoError(t, db.Create(sol).Error)

	h, err := repo.Resolve(ctx, model.ContentRef{Kind: model.KindExercise, ID: ex.ID})
	require.NoError(t, err)
	assert.Equal(t, "binary search", h.Title)
	assert.False(t, h.CreatedAt.IsZero())

	h, err = repo.Resolve(ctx, model.ContentRef{Kind: model.KindExam, ID: exam.ID})
	require.NoError(t, err)
	assert.Equal(t, "final", h.Title)

	h, err = repo.Resolve(ctx, model.ContentRef{Kind: model.KindSolution, ID: sol.ID})
	require.NoError(t, err)
	assert.Empty(t, h.Title)

	_, err = repo.Resolve(ctx, model.ContentRef{Kind: model.KindLesson, ID: 77})
	assert.ErrorIs(t, err, util.ErrNotFound)

	_, err = repo.Resolve(ctx, model.ContentRef{Kind: "poll", ID: 1})
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	_, err = repo.Resolve(ctx, model.ContentRef{Kind: model.KindExercise})
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestResolveSoftDeleted(t *testing.T) {
	db := testutil.DB(t)
	repo := NewContentRepository(db)
	ex := testutil.CreateExercise(t, db, "gone")
	require.NoError(t, db.Delete(ex).Error)

	_, err := repo.Resolve(context.Background(), model.ContentRef{Kind: model.KindExercise, ID: ex.ID})
	assert.ErrorIs(t, err, util.ErrNotFound)
}
