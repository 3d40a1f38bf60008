package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	cases := []struct {
		location string
		want     string
	}{
		{"https://plants.s3.amazonaws.com/uploads/leaf.png", "uploads/leaf.png"},
		{"https://plants.s3.ap-southeast-1.amazonaws.com/plants/leaf.png", "plants/leaf.png"},
		{"https://s3.us-east-1.amazonaws.com/plants/0b6f.png", "0b6f.png"},
		{"http://localhost:9000/plants/0b6f.png", "0b6f.png"},
		{"http://localhost:9000/plants/uploads/leaf%20scan.png", "uploads/leaf scan.png"},
		{"uploads/leaf.png", "uploads/leaf.png"},
		{"0b6f.png", "0b6f.png"},
	}
	for _, tc := range cases {
		got, err := objectKey("plants", tc.location)
		require.NoError(t, err, tc.location)
		assert.Equal(t, tc.want, got, tc.location)
	}

	_, err := objectKey("plants", "http://localhost:9000/")
	assert.Error(t, err)
}

func TestUploadThenDeleteWithCustomEndpoint(t *testing.T) {
	var mu sync.Mutex
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		requests = append(requests, r.Method+" "+r.URL.Path)
		mu.Unlock()
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := New(Config{
		Region:          "us-east-1",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		BucketName:      "plants",
		Endpoint:        srv.URL,
	})
	require.NoError(t, err)

	location, err := store.Upload(context.Background(), "0b6f.png", []byte("leaf"), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(location, srv.URL+"/plants/0b6f.png"), location)

	require.NoError(t, store.Delete(context.Background(), location))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"PUT /plants/0b6f.png", "DELETE /plants/0b6f.png"}, requests)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(Config{Region: "ap-southeast-1"})
	assert.Error(t, err)
}
