package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	nhttp "github.com/chaos-io/rembg-web/util/http"
)

// IsURL 判断输入是否为 http(s) 地址
func IsURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// LoadImage 读取本地图片或下载远程图片, 返回文件名和原始字节
func LoadImage(ctx context.Context, cli nhttp.IClient, src string) (string, []byte, error) {
	if IsURL(src) {
		return DownloadImage(ctx, cli, src)
	}
	return OpenImage(src)
}

// DownloadImage 下载图片
func DownloadImage(ctx context.Context, cli nhttp.IClient, rawURL string) (string, []byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("invalid image url: %w", err)
	}

	var data []byte
	if err := cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: rawURL,
		Method:     http.MethodGet,
		Header:     map[string]string{"Accept": "image/*"},
		Response:   &data,
	}); err != nil {
		return "", nil, fmt.Errorf("failed to download image: %w", err)
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = ""
	}
	return name, data, nil
}

// OpenImage 打开本地图片
func OpenImage(p string) (string, []byte, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return "", nil, err
	}
	return filepath.Base(p), data, nil
}
