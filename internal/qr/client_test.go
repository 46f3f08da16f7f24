package qr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGenerator_GenerateQR(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	gen := NewHTTPGenerator(HTTPGeneratorConfig{BaseURL: srv.URL, SizePixels: 300})

	img, err := gen.GenerateQR(context.Background(), "1HGCM82633A004352")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), img)
	assert.Equal(t, []string{"1HGCM82633A004352"}, gotQuery["data"])
	assert.Equal(t, []string{"300x300"}, gotQuery["size"])
	assert.Equal(t, []string{"png"}, gotQuery["format"])
}

func TestHTTPGenerator_Non200IsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	gen := NewHTTPGenerator(HTTPGeneratorConfig{BaseURL: srv.URL})
	_, err := gen.GenerateQR(context.Background(), "payload")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestHTTPGenerator_EmptyBodyIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gen := NewHTTPGenerator(HTTPGeneratorConfig{BaseURL: srv.URL})
	_, err := gen.GenerateQR(context.Background(), "payload")
	require.Error(t, err)
}

func TestHTTPGenerator_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	gen := NewHTTPGenerator(HTTPGeneratorConfig{BaseURL: srv.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.GenerateQR(ctx, "payload")
	assert.Error(t, err)
}
