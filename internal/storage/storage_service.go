package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"scoring-service/internal/config"
)

// StorageService 提供对象存储功能（帧图片持久化）
type StorageService struct {
	client     *minio.Client
	bucketName string
}

// NewStorageService 创建新的存储服务
func NewStorageService(cfg *config.Config) (*StorageService, error) {
	client, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	// 检查存储桶是否存在，不存在则创建
	bucketExists, err := client.BucketExists(context.Background(), cfg.Storage.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !bucketExists {
		err = client.MakeBucket(context.Background(), cfg.Storage.BucketName, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
	}

	return &StorageService{
		client:     client,
		bucketName: cfg.Storage.BucketName,
	}, nil
}

// Upload 上传字节内容到对象存储，返回可访问的URL
func (s *StorageService) Upload(ctx context.Context, data []byte, objectKey, contentType string) (string, error) {
	_, err := s.client.PutObject(
		ctx,
		s.bucketName,
		objectKey,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return "", fmt.Errorf("上传文件失败: %w", err)
	}

	// 获取预签名URL，有效期7天
	url, err := s.client.PresignedGetObject(ctx, s.bucketName, objectKey, 7*24*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("获取文件URL失败: %w", err)
	}
	return url.String(), nil
}

// DeleteFile 从对象存储中删除文件
func (s *StorageService) DeleteFile(ctx context.Context, objectKey string) error {
	err := s.client.RemoveObject(ctx, s.bucketName, objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}
