package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	client := NewHTTPClient()
	httpClient, ok := client.(*HTTPClient)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, httpClient.client.Timeout)

	// 0 表示只由 ctx 控制
	httpClient, ok = NewHTTPClientWithTimeout(0).(*HTTPClient)
	require.True(t, ok)
	assert.Zero(t, httpClient.client.Timeout)
}

func multipartFile(t *testing.T, field, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("size", "auto"))
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestHTTPClient_DoHTTPRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		param      func(t *testing.T, url string) *RequestParam
		wantErr    bool
		wantStatus int
		wantBody   []byte
		wantHeader string
	}{
		{
			name: "multipart上传返回原始字节",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
				f, fh, err := r.FormFile("image_file")
				if !assert.NoError(t, err) {
					return
				}
				defer func() {
					_ = f.Close()
				}()
				data, _ := io.ReadAll(f)
				assert.Equal(t, "cat.png", fh.Filename)
				assert.Equal(t, []byte("image-bytes"), data)
				assert.Equal(t, "auto", r.FormValue("size"))

				w.Header().Set("Content-Type", "image/png")
				w.Header().Set("X-Credits-Charged", "1")
				_, _ = w.Write([]byte("result-bytes"))
			},
			param: func(t *testing.T, url string) *RequestParam {
				body, ct := multipartFile(t, "image_file", "cat.png", []byte("image-bytes"))
				return &RequestParam{
					RequestURI: url,
					Method:     http.MethodPost,
					Header:     map[string]string{"Content-Type": ct, "X-Api-Key": "secret"},
					Body:       body,
				}
			},
			wantBody:   []byte("result-bytes"),
			wantHeader: "1",
		},
		{
			name: "GET无请求体",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "image/*", r.Header.Get("Accept"))
				assert.Zero(t, r.ContentLength)
				_, _ = w.Write([]byte("jpeg"))
			},
			param: func(_ *testing.T, url string) *RequestParam {
				return &RequestParam{
					RequestURI: url,
					Method:     http.MethodGet,
					Header:     map[string]string{"Accept": "image/*"},
				}
			},
			wantBody: []byte("jpeg"),
		},
		{
			name: "空响应体",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			param: func(_ *testing.T, url string) *RequestParam {
				return &RequestParam{RequestURI: url, Method: http.MethodGet}
			},
			wantBody: []byte{},
		},
		{
			name: "403返回StatusError",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"errors":[{"title":"Missing API Key"}]}`))
			},
			param: func(_ *testing.T, url string) *RequestParam {
				return &RequestParam{RequestURI: url, Method: http.MethodPost, Body: bytes.NewReader(nil)}
			},
			wantErr:    true,
			wantStatus: http.StatusForbidden,
			wantBody:   []byte(`{"errors":[{"title":"Missing API Key"}]}`),
		},
		{
			name: "503返回StatusError",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			param: func(_ *testing.T, url string) *RequestParam {
				return &RequestParam{RequestURI: url, Method: http.MethodGet}
			},
			wantErr:    true,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   []byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			var raw []byte
			param := tt.param(t, server.URL)
			param.Response = &raw

			err := NewHTTPClient().DoHTTPRequest(context.Background(), param)
			if tt.wantErr {
				var statusErr *StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, tt.wantStatus, statusErr.StatusCode)
				assert.Equal(t, tt.wantBody, statusErr.Body)
				assert.Contains(t, err.Error(), "HTTP request failed with status")
				assert.Nil(t, raw)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, raw)
			require.NotNil(t, param.ResponseHeader)
			if tt.wantHeader != "" {
				assert.Equal(t, tt.wantHeader, param.ResponseHeader.Get("X-Credits-Charged"))
			}
		})
	}
}

func TestHTTPClient_NilResponseDiscardsBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ignored"))
	}))
	defer server.Close()

	param := &RequestParam{RequestURI: server.URL, Method: http.MethodGet}
	require.NoError(t, NewHTTPClient().DoHTTPRequest(context.Background(), param))
	assert.NotNil(t, param.ResponseHeader)
}

func TestHTTPClient_NilParam(t *testing.T) {
	t.Parallel()

	err := NewHTTPClient().DoHTTPRequest(context.Background(), nil)
	assert.EqualError(t, err, "request param is nil")
}

func TestHTTPClient_InvalidURL(t *testing.T) {
	t.Parallel()

	err := NewHTTPClient().DoHTTPRequest(context.Background(), &RequestParam{
		RequestURI: "://bad",
		Method:     http.MethodGet,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "new request")
}

func TestHTTPClient_Deadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	tests := []struct {
		name  string
		ctx   func() (context.Context, context.CancelFunc)
		param *RequestParam
	}{
		{
			name: "请求级超时",
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithCancel(context.Background())
			},
			param: &RequestParam{RequestURI: server.URL, Method: http.MethodGet, Timeout: 50 * time.Millisecond},
		},
		{
			name: "ctx超时",
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 50*time.Millisecond)
			},
			param: &RequestParam{RequestURI: server.URL, Method: http.MethodGet},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.ctx()
			defer cancel()

			err := NewHTTPClientWithTimeout(0).DoHTTPRequest(ctx, tt.param)
			require.Error(t, err)
			assert.True(t, errors.Is(err, context.DeadlineExceeded))
		})
	}
}
