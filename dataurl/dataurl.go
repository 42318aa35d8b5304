// Package dataurl encodes binary images as data URLs and sniffs image payloads.
package dataurl

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	scheme       = "data:"
	base64Suffix = ";base64"
)

var (
	ErrNotImage   = errors.New("payload is not an image")
	ErrMalformed  = errors.New("malformed data URL")
	ErrNotBase64  = errors.New("data URL is not base64 encoded")
	ErrEmptyImage = errors.New("empty image payload")
)

// Encode 把二进制内容编码为 data URL
func Encode(contentType string, data []byte) string {
	var b strings.Builder
	b.Grow(len(scheme) + len(contentType) + len(base64Suffix) + 1 + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString(scheme)
	b.WriteString(contentType)
	b.WriteString(base64Suffix)
	b.WriteByte(',')
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

// Decode 解析 data URL，只支持 base64 形式
func Decode(s string) (contentType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, scheme)
	if !ok {
		return "", nil, ErrMalformed
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrMalformed
	}
	contentType, ok = strings.CutSuffix(meta, base64Suffix)
	if !ok {
		return "", nil, ErrNotBase64
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode base64 payload: %w", err)
	}
	return contentType, data, nil
}

// DetectImage 通过魔数判断内容类型，非 image/* 返回 ErrNotImage
func DetectImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return mt.String(), fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}
	return mt.String(), nil
}

// DecodeConfig 读取图片头信息（尺寸、格式），不解码像素
func DecodeConfig(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return cfg, format, nil
}
