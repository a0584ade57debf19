package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// ErrStorageUnavailable 对象存储未配置
var ErrStorageUnavailable = errors.New("object storage is not configured")

// 上传限制
const maxUploadSize = 50 << 20 // 50MB

var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".pdf": true, ".xlsx": true, ".xls": true, ".docx": true, ".doc": true,
	".dwg": true, ".dxf": true, ".step": true, ".stp": true, ".zip": true,
}

// UploadService 附件上传服务
type UploadService struct {
	client *minio.Client
	bucket string
}

// NewUploadService 创建上传服务
func NewUploadService(client *minio.Client, bucket string) *UploadService {
	return &UploadService{client: client, bucket: bucket}
}

// UploadResult 上传结果
type UploadResult struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Upload 上传文件到对象存储，按日期分目录
func (s *UploadService) Upload(ctx context.Context, filename string, size int64, contentType string, reader io.Reader) (*UploadResult, error) {
	if s.client == nil {
		return nil, ErrStorageUnavailable
	}
	if size > maxUploadSize {
		return nil, fmt.Errorf("file too large: %d bytes", size)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("file type not allowed: %s", ext)
	}

	objectName := fmt.Sprintf("%s/%s%s", time.Now().Format("2006/01/02"), uuid.New().String(), ext)
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	attachmentType := "file"
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		attachmentType = "image"
	}

	return &UploadResult{
		Name: filename,
		URL:  fmt.Sprintf("/uploads/%s", objectName),
		Size: size,
		Type: attachmentType,
	}, nil
}

// Download 取文件流，供 /uploads 路由回源
func (s *UploadService) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	if s.client == nil {
		return nil, ErrStorageUnavailable
	}
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}
