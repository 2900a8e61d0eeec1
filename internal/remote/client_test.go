// Package remote provides unit tests for the API client.
package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PastorRae/visitation-log/internal/config"
	"github.com/PastorRae/visitation-log/internal/errors"
	"github.com/PastorRae/visitation-log/internal/models"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.APIConfig{
		BaseURL:        baseURL,
		Timeout:        2 * time.Second,
		RetryAttempts:  3,
		RetryBaseDelay: time.Millisecond,
	})
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "pastor-1",
		"exp": exp.Unix(),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestAuthenticateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/mobile/auth/mobile", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var creds Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "pastor@example.org", creds.Email)

		json.NewEncoder(w).Encode(AuthResponse{
			Success:   true,
			Token:     "token-abc",
			User:      User{ID: 7, Email: creds.Email, Name: "Pastor Rae", ChurchID: 1},
			ExpiresIn: 3600,
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.Authenticate(context.Background(), Credentials{
		Email:    "pastor@example.org",
		Password: "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, "token-abc", resp.Token)
	assert.True(t, c.IsAuthenticated())
	assert.Equal(t, "pastor@example.org", c.CurrentUser().Email)
}

func TestAuthenticateInvalidCredentials(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Authenticate(context.Background(), Credentials{
		Email:    "pastor@example.org",
		Password: "wrong",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAuth))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "auth errors must not be retried")
	assert.False(t, c.IsAuthenticated())
}

func TestAuthenticateRejectsBadPayload(t *testing.T) {
	c := newTestClient("http://unused")
	_, err := c.Authenticate(context.Background(), Credentials{Email: "not-an-email"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestRequestRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(healthResponse{Status: "healthy"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	assert.True(t, c.HealthCheck(context.Background()))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRequestSurfacesLastErrorAfterExhaustion(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.DownloadChurches(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrServer))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRequestDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.DownloadChurches(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestUnauthorizedInvalidatesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.SetToken("stale-token", &User{Email: "pastor@example.org"})
	require.True(t, c.IsAuthenticated())

	_, err := c.DownloadChurches(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAuth))
	assert.False(t, c.IsAuthenticated(), "401 must invalidate the held token")
}

func TestBearerTokenAttached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-xyz", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(churchesResponse{Success: true})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.SetToken("token-xyz", &User{})
	_, err := c.DownloadChurches(context.Background())
	require.NoError(t, err)
}

func TestUploadVisits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/mobile/visits/sync", r.URL.Path)

		var body uploadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Visits, 2)

		json.NewEncoder(w).Encode(UploadResult{
			Success: true,
			Synced:  2,
			Conflicts: []UploadConflict{{
				VisitID:       string(body.Visits[0].ID),
				MobileUpdated: 100,
				ServerUpdated: 200,
				Resolution:    "server_kept",
			}},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	result, err := c.UploadVisits(context.Background(), []*models.VisitRecord{
		{ID: "v1", UpdatedAt: 100},
		{ID: "v2", UpdatedAt: 150},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Synced)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "server_kept", result.Conflicts[0].Resolution)
}

func TestDownloadChurchesEmptyDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(churchesResponse{Success: true})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	churches, err := c.DownloadChurches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, churches)
}

func TestDownloadChurchesRejectsMalformedEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Entry missing its id must be rejected at the boundary.
		w.Write([]byte(`{"success": true, "data": [{"name": "Nameless"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.DownloadChurches(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestDownloadMembers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/mobile/members/c1", r.URL.Path)
		assert.Equal(t, "500", r.URL.Query().Get("limit"))

		json.NewEncoder(w).Encode(membersResponse{
			Success: true,
			Data: []memberDTO{
				{ID: "m1", FirstName: "Ann", LastName: "Best", ChurchID: "c1"},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	members, err := c.DownloadMembers(context.Background(), "c1", "")
	require.NoError(t, err)

	require.Len(t, members, 1)
	assert.Equal(t, models.UUID("m1"), members[0].ID)
	assert.Equal(t, "Ann Best", members[0].FullName())
}

func TestDownloadVisits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "c1", r.URL.Query().Get("church_id"))
		assert.Equal(t, "1000", r.URL.Query().Get("since"))

		json.NewEncoder(w).Encode(visitsDownloadResponse{
			Success:         true,
			Data:            []*models.VisitRecord{{ID: "v1", UpdatedAt: 2000}},
			ServerTimestamp: 5000,
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	visits, serverTS, err := c.DownloadVisits(context.Background(), "c1", 1000)
	require.NoError(t, err)

	require.Len(t, visits, 1)
	assert.EqualValues(t, 5000, serverTS)
}

func TestHealthCheck(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy {
			json.NewEncoder(w).Encode(healthResponse{Status: "healthy"})
		} else {
			json.NewEncoder(w).Encode(healthResponse{Status: "degraded"})
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	assert.True(t, c.HealthCheck(context.Background()))

	healthy = false
	assert.False(t, c.HealthCheck(context.Background()))
}

func TestHealthCheckNeverErrors(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1") // nothing listens here
	assert.False(t, c.HealthCheck(context.Background()))
}

func TestEnsureFreshTokenValid(t *testing.T) {
	c := newTestClient("http://unused")
	c.SetToken(signedToken(t, time.Now().Add(time.Hour)), &User{})

	assert.True(t, c.EnsureFreshToken())
	assert.True(t, c.IsAuthenticated())
}

func TestEnsureFreshTokenExpired(t *testing.T) {
	c := newTestClient("http://unused")
	c.SetToken(signedToken(t, time.Now().Add(-time.Hour)), &User{})

	assert.False(t, c.EnsureFreshToken())
	assert.False(t, c.IsAuthenticated(), "expired token must be discarded")
}

func TestEnsureFreshTokenGarbage(t *testing.T) {
	c := newTestClient("http://unused")
	c.SetToken("not-a-jwt", &User{})

	assert.False(t, c.EnsureFreshToken())
	assert.False(t, c.IsAuthenticated())
}

func TestEnsureFreshTokenMissing(t *testing.T) {
	c := newTestClient("http://unused")
	assert.False(t, c.EnsureFreshToken())
}

func TestNetworkErrorClassification(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	_, err := c.DownloadChurches(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNetwork))
	assert.True(t, errors.IsRetryable(err))
}
