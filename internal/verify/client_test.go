package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSuccessWithIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rooms/r1/participants/check", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"userId":"u1"}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, time.Second).Check(context.Background(), "r1", "tok")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "u1", res.UserID)
}

func TestCheckSuccessWithoutIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, time.Second).Check(context.Background(), "r1", "tok")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Empty(t, res.UserID)
}

func TestCheckRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, time.Second).Check(context.Background(), "r1", "bad")
	require.NoError(t, err)
	assert.False(t, res.OK)
}

func TestCheckTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := NewClient(srv.URL, time.Second).Check(context.Background(), "r1", "tok")
	require.Error(t, err)
}

func TestCheckEscapesRoomID(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Check(context.Background(), "a/b", "tok")
	require.NoError(t, err)
	assert.Equal(t, "/rooms/a%2Fb/participants/check", gotPath)
}
