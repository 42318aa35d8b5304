package rembg

import (
	"context"
	"errors"
)

// ErrMalformedResponse 服务返回 2xx 但内容不是图片
var ErrMalformedResponse = errors.New("malformed background removal response")

// Image 上传文件或抠图结果
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

type Remover interface {
	Remove(ctx context.Context, img *Image) (*Image, error)
}
