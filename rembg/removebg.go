package rembg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/chaos-io/rembg-web/dataurl"
	nhttp "github.com/chaos-io/rembg-web/util/http"
)

const (
	RemoveBGModel   = "remove.bg"
	DefaultEndpoint = "https://api.remove.bg/v1.0/removebg"

	apiKeyHeader = "X-Api-Key"
	sizeAuto     = "auto"
	defaultName  = "image.png"
)

type RemoveBG struct {
	endpoint string
	apiKey   string
	size     string
	cli      nhttp.IClient
}

type Option func(*RemoveBG)

// WithClient 替换底层 HTTP 客户端（测试用）
func WithClient(cli nhttp.IClient) Option {
	return func(r *RemoveBG) {
		r.cli = cli
	}
}

func WithSize(size string) Option {
	return func(r *RemoveBG) {
		r.size = size
	}
}

// NewRemoveBG 超时由调用方的 ctx 控制，底层客户端不再设置整体超时
func NewRemoveBG(endpoint, apiKey string, opts ...Option) *RemoveBG {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	r := &RemoveBG{
		endpoint: endpoint,
		apiKey:   apiKey,
		size:     sizeAuto,
		cli:      nhttp.NewHTTPClientWithTimeout(0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

/*
	curl -H 'X-API-Key: INSERT_YOUR_API_KEY_HERE' \
	  -F 'image_file=@/path/to/file.jpg' \
	  -F 'size=auto' \
	  -f https://api.remove.bg/v1.0/removebg -o no-bg.png
*/
func (r *RemoveBG) Remove(ctx context.Context, img *Image) (*Image, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, errors.New("empty input image")
	}

	body, contentType, err := r.multipartBody(img)
	if err != nil {
		return nil, err
	}

	var raw []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: r.endpoint,
		Method:     http.MethodPost,
		Header: map[string]string{
			"Content-Type": contentType,
			"Accept":       "image/*",
			apiKeyHeader:   r.apiKey,
		},
		Body:     body,
		Response: &raw,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", describeAPIError(err))
	}

	slog.DebugContext(ctx, "get the response",
		"model", RemoveBGModel,
		"bytes", len(raw),
		"credits_charged", reqParam.ResponseHeader.Get("X-Credits-Charged"))

	ct, err := dataurl.DetectImage(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if _, _, err := dataurl.DecodeConfig(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &Image{
		Name:        img.Name,
		ContentType: ct,
		Data:        raw,
	}, nil
}

func (r *RemoveBG) multipartBody(img *Image) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	name := img.Name
	if name == "" {
		name = defaultName
	}

	// image_file 文件字段
	part, err := writer.CreateFormFile("image_file", name)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}

	if err := writer.WriteField("size", r.size); err != nil {
		return nil, "", fmt.Errorf("write size field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

// {"errors":[{"title":"Missing API Key","code":"auth_failed"}]}
type apiErrorResp struct {
	Errors []struct {
		Title  string `json:"title"`
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// APIError 带 remove.bg 错误标题的状态码错误
type APIError struct {
	*nhttp.StatusError
	Titles []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remove.bg returned status %d: %s", e.StatusCode, strings.Join(e.Titles, "; "))
}

func (e *APIError) Unwrap() error {
	return e.StatusError
}

func describeAPIError(err error) error {
	var statusErr *nhttp.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}

	var resp apiErrorResp
	if jsonErr := json.Unmarshal(statusErr.Body, &resp); jsonErr != nil || len(resp.Errors) == 0 {
		return err
	}

	titles := make([]string, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		titles = append(titles, e.Title)
	}
	return &APIError{StatusError: statusErr, Titles: titles}
}
