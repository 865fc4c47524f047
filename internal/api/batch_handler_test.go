package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	_, authorToken := env.register(t)
	aliceID, alice := env.register(t)
	_, bob := env.register(t)
	job := env.jobWithItems(t, authorToken, 1, 4)
	jobPath := "/api/jobs/" + job.ID.String()

	rec := env.do(t, http.MethodGet, jobPath+"/batches/available", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var available []BatchResponse
	decodeBody(t, rec, &available)
	require.Len(t, available, 2)
	assert.Equal(t, 0, available[0].BatchNumber)
	assert.Equal(t, 1, available[1].BatchNumber)

	first := available[0].ID.String()
	rec = env.do(t, http.MethodPost, "/api/batches/"+first+"/claim", alice, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var claimed BatchResponse
	decodeBody(t, rec, &claimed)
	require.Len(t, claimed.Claims, 1)
	assert.Equal(t, aliceID, claimed.Claims[0].UserID)
	assert.False(t, claimed.Claims[0].Completed)
	require.NotNil(t, claimed.Claims[0].ExpiresAt)
	assert.True(t, claimed.Claims[0].ExpiresAt.Equal(env.now.Add(time.Hour)))

	t.Run("claiming twice conflicts", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/batches/"+first+"/claim", alice, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "already_claimed", errorBody(t, rec)["kind"])
	})

	t.Run("full batch rejects another labeller", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/batches/"+first+"/claim", bob, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "capacity_exceeded", errorBody(t, rec)["kind"])
	})

	t.Run("full batch is not offered", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, jobPath+"/batches/next", bob, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var next BatchResponse
		decodeBody(t, rec, &next)
		assert.Equal(t, 1, next.BatchNumber)
	})

	t.Run("items are hidden from non-holders", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/batches/"+first+"/items", bob, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/batches/"+first+"/items", authorToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("complete then unclaim is rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/batches/"+first+"/complete", alice, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var done BatchResponse
		decodeBody(t, rec, &done)
		require.Len(t, done.Claims, 1)
		assert.True(t, done.Claims[0].Completed)
		assert.Nil(t, done.Claims[0].ExpiresAt)

		rec = env.do(t, http.MethodPost, "/api/batches/"+first+"/complete", alice, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = env.do(t, http.MethodDelete, "/api/batches/"+first+"/claim", alice, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Claim is already completed", errorBody(t, rec)["error"])
	})

	t.Run("rating reflects completion", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/users/"+aliceID.String()+"/rating", bob, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var rating RatingResponse
		decodeBody(t, rec, &rating)
		assert.Equal(t, 1.0, rating.Rating)
	})
}

func TestNextBatchNoContent(t *testing.T) {
	env := newAPIEnv(t)
	_, authorToken := env.register(t)
	_, alice := env.register(t)
	job := env.jobWithItems(t, authorToken, 1, 2)

	rec := env.do(t, http.MethodGet, "/api/jobs/"+job.ID.String()+"/batches/next", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var batch BatchResponse
	decodeBody(t, rec, &batch)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/batches/"+batch.ID.String()+"/claim", alice, nil).Code)

	rec = env.do(t, http.MethodGet, "/api/jobs/"+job.ID.String()+"/batches/next", alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/jobs/"+job.ID.String()+"/batches/available", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestUnclaimRemovesLabels(t *testing.T) {
	env := newAPIEnv(t)
	_, authorToken := env.register(t)
	alice, aliceToken := env.register(t)
	job := env.jobWithItems(t, authorToken, 2, 2)

	rec := env.do(t, http.MethodGet, "/api/jobs/"+job.ID.String()+"/batches/next", aliceToken, nil)
	var batch BatchResponse
	decodeBody(t, rec, &batch)
	batchPath := "/api/batches/" + batch.ID.String()
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, batchPath+"/claim", aliceToken, nil).Code)

	rec = env.do(t, http.MethodGet, batchPath+"/items", aliceToken, nil)
	var items []ItemResponse
	decodeBody(t, rec, &items)
	require.NotEmpty(t, items)
	itemPath := "/api/items/" + items[0].ID.String() + "/labels"
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, itemPath, aliceToken, SubmitLabelsRequest{Labels: []string{"cat"}}).Code)

	rec = env.do(t, http.MethodDelete, batchPath+"/claim", aliceToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	item, err := env.stores.Items.GetByID(context.Background(), items[0].ID)
	require.NoError(t, err)
	_, has := item.SubmissionBy(alice)
	assert.False(t, has, "unclaim must drop the labeller's submissions")

	rec = env.do(t, http.MethodPut, itemPath, aliceToken, SubmitLabelsRequest{Labels: []string{"cat"}})
	assert.Equal(t, http.StatusConflict, rec.Code, "labels need an active claim")

	rec = env.do(t, http.MethodDelete, batchPath+"/claim", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchRoutesRejectBadIDs(t *testing.T) {
	env := newAPIEnv(t)
	_, token := env.register(t)

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodPost, "/api/batches/nope/claim", http.StatusBadRequest},
		{http.MethodDelete, "/api/batches/nope/claim", http.StatusBadRequest},
		{http.MethodPost, "/api/batches/nope/complete", http.StatusBadRequest},
		{http.MethodGet, "/api/batches/nope/items", http.StatusBadRequest},
		{http.MethodPost, "/api/batches/" + uuid.NewString() + "/claim", http.StatusNotFound},
		{http.MethodGet, "/api/jobs/nope/batches/next", http.StatusBadRequest},
		{http.MethodGet, "/api/jobs/" + uuid.NewString() + "/batches/available", http.StatusNotFound},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := env.do(t, tc.method, tc.path, token, nil)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestBatchRoutesRequireAuth(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/api/jobs/"+uuid.NewString()+"/batches/next", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/batches/"+uuid.NewString()+"/claim", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", errorBody(t, rec)["error"])
}
