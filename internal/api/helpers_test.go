package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/api/middleware"
	"github.com/phrazzld/labelhive-api/internal/config"
	"github.com/phrazzld/labelhive-api/internal/domain/batching"
	"github.com/phrazzld/labelhive-api/internal/mocks"
	"github.com/phrazzld/labelhive-api/internal/service"
	"github.com/phrazzld/labelhive-api/internal/service/auth"
	"github.com/stretchr/testify/require"
)

const testTokenPrefix = "test-token-"

// apiEnv wires the real services over in-memory stores behind the real
// routes. Tokens are "test-token-<user id>".
type apiEnv struct {
	stores *mocks.MemoryStores
	jwt    *mocks.MockJWTService
	router http.Handler
	now    time.Time
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	env := &apiEnv{
		stores: mocks.NewMemoryStores(),
		now:    time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	env.jwt = &mocks.MockJWTService{
		GenerateTokenFn: func(_ context.Context, userID uuid.UUID) (string, error) {
			return testTokenPrefix + userID.String(), nil
		},
		ValidateTokenFn: func(_ context.Context, token string) (*auth.Claims, error) {
			id, err := uuid.Parse(strings.TrimPrefix(token, testTokenPrefix))
			if err != nil || !strings.HasPrefix(token, testTokenPrefix) {
				return nil, auth.ErrInvalidToken
			}
			return &auth.Claims{UserID: id}, nil
		},
	}

	rating := service.NewRatingService(env.stores.Users, nil)
	batches, err := service.NewBatchService(
		env.stores.Stores(),
		env.stores.Transactor,
		rating,
		batching.Params{BatchSize: 2, ClaimTTL: time.Hour},
		nil,
		service.WithBatchClock(func() time.Time { return env.now }),
	)
	require.NoError(t, err)
	labels, err := service.NewLabelService(env.stores.Stores(), env.stores.Transactor, nil, nil)
	require.NoError(t, err)

	handlers := &Handlers{
		Auth: NewAuthHandler(
			service.NewUserService(env.stores.Users, auth.NewBcryptVerifier(), nil),
			env.jwt,
			config.AuthConfig{TokenLifetimeMinutes: 60},
			nil,
		),
		Jobs:   NewJobHandler(service.NewJobService(env.stores.Jobs, nil), batches, labels, nil),
		Batch:  NewBatchHandler(batches, nil),
		Labels: NewLabelHandler(labels, nil),
		Users:  NewUserHandler(rating, nil),
	}

	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Route("/api", handlers.Routes(middleware.NewAuthMiddleware(env.jwt).Authenticate))
	env.router = r

	return env
}

// do sends a request as token (empty for anonymous) and returns the recorder.
func (e *apiEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// register creates a user through the API and returns its ID and token.
func (e *apiEnv) register(t *testing.T) (uuid.UUID, string) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Email:    fmt.Sprintf("labeller-%s@example.com", uuid.NewString()[:8]),
		Password: "correct-horse-battery",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AuthResponse
	decodeBody(t, rec, &resp)
	return resp.UserID, resp.AccessToken
}

// jobWithItems creates a job as token, uploads n items and returns the job.
func (e *apiEnv) jobWithItems(t *testing.T, token string, labellers, n int, labels ...string) JobResponse {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/jobs", token, CreateJobRequest{
		Title:                "street signs",
		Labels:               labels,
		NumLabellersRequired: labellers,
		Reward:               5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var job JobResponse
	decodeBody(t, rec, &job)

	if n > 0 {
		files := make([]string, n)
		for i := range files {
			files[i] = fmt.Sprintf("sign-%02d.png", i)
		}
		rec = e.do(t, http.MethodPost, "/api/jobs/"+job.ID.String()+"/items", token, UploadItemsRequest{FileNames: files})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	return job
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	decodeBody(t, rec, &body)
	return body
}

var errBoom = errors.New("boom")
