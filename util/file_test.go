package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nhttp "github.com/chaos-io/rembg-web/util/http"
)

func TestIsURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want bool
	}{
		{name: "http地址", src: "http://example.com/a.png", want: true},
		{name: "https地址", src: "https://example.com/a.png", want: true},
		{name: "本地路径", src: "input/a.png", want: false},
		{name: "其他协议", src: "ftp://example.com/a.png", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsURL(tt.src))
		})
	}
}

func TestOpenImage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "cat.png")
	require.NoError(t, os.WriteFile(p, []byte("png-bytes"), 0o600))

	name, data, err := LoadImage(context.Background(), nhttp.NewHTTPClient(), p)
	require.NoError(t, err)
	assert.Equal(t, "cat.png", name)
	assert.Equal(t, []byte("png-bytes"), data)

	_, _, err = OpenImage(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDownloadImage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/images/dog.jpg":
			assert.Equal(t, "image/*", r.Header.Get("Accept"))
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cli := nhttp.NewHTTPClient()

	name, data, err := LoadImage(context.Background(), cli, server.URL+"/images/dog.jpg")
	require.NoError(t, err)
	assert.Equal(t, "dog.jpg", name)
	assert.Equal(t, []byte("jpeg-bytes"), data)

	_, _, err = DownloadImage(context.Background(), cli, server.URL+"/missing")
	require.Error(t, err)
	var statusErr *nhttp.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}
