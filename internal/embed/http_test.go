package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scouterr "github.com/codescout/codescout/internal/errors"
)

// embedServer returns a fixed number of embeddings for every request.
func embedServer(t *testing.T, dims, count int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		embeddings := make([][]float64, count)
		for i := range embeddings {
			vec := make([]float64, dims)
			vec[i%dims] = 1
			embeddings[i] = vec
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: embeddings})
	}))
}

func TestHTTPEmbedder_Embed_ReturnsOneVectorPerText(t *testing.T) {
	// Given: a service answering with two 4-dim embeddings
	srv := embedServer(t, 4, 2)
	defer srv.Close()
	e := NewHTTPEmbedder(HTTPConfig{Endpoint: srv.URL, Model: "test-model"})

	// When: two texts are embedded
	vectors, err := e.Embed(context.Background(), []string{"alpha", "beta"}, IntentDocument)

	// Then: one normalized vector each, dimensions adopted from the response
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], 4)
	assert.Equal(t, 4, e.Dimensions())
}

func TestHTTPEmbedder_Embed_CountMismatchIsHardError(t *testing.T) {
	// Given: a service returning one embedding for two texts
	srv := embedServer(t, 4, 1)
	defer srv.Close()
	e := NewHTTPEmbedder(HTTPConfig{Endpoint: srv.URL, Model: "test-model"})

	// When/Then: the mismatch is rejected, never padded
	_, err := e.Embed(context.Background(), []string{"alpha", "beta"}, IntentDocument)
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeDimensionMismatch, scouterr.GetCode(err))
}

func TestHTTPEmbedder_Embed_TimeoutClassifiedRetryable(t *testing.T) {
	// Given: a service slower than the request timeout
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()
	e := NewHTTPEmbedder(HTTPConfig{
		Endpoint:   srv.URL,
		Model:      "test-model",
		Timeout:    20 * time.Millisecond,
		MaxRetries: 1,
	})

	// When/Then: the failure carries the retryable timeout code
	_, err := e.Embed(context.Background(), []string{"alpha"}, IntentQuery)
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeEmbedTimeout, scouterr.GetCode(err))
	assert.True(t, scouterr.IsRetryable(err))
}

func TestHTTPEmbedder_Embed_ConnectionRefusedClassifiedUnavailable(t *testing.T) {
	// Given: an endpoint nothing listens on
	e := NewHTTPEmbedder(HTTPConfig{
		Endpoint:   "http://127.0.0.1:1",
		Model:      "test-model",
		Timeout:    2 * time.Second,
		MaxRetries: 1,
	})

	// When/Then: the failure carries the retryable unavailable code
	_, err := e.Embed(context.Background(), []string{"alpha"}, IntentQuery)
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeEmbedUnavailable, scouterr.GetCode(err))
	assert.True(t, scouterr.IsRetryable(err))
}

func TestClassifyEmbedError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, scouterr.ErrCodeEmbedTimeout},
		{"connection", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, scouterr.ErrCodeEmbedUnavailable},
		{"other", errors.New("bad response"), scouterr.ErrCodeEmbedFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyEmbedError(tt.err))
		})
	}
}
