package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"StudioLink/config"
	"StudioLink/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	minioClient *minio.Client
	minioBucket string
)

// InitMinio 初始化 MinIO 客户端并确保存储桶存在
func InitMinio(cfg *config.Config) error {
	logger.Info("正在连接 MinIO 服务器",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 检查存储桶是否存在，不存在则创建
	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{
			Region: cfg.MinioRegion,
		})
		if err != nil {
			return fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("成功创建存储桶", logger.String("bucket", cfg.MinioBucket))
	}

	minioClient = client
	minioBucket = cfg.MinioBucket
	return nil
}

// GetMinioClient 返回全局 MinIO 客户端
func GetMinioClient() *minio.Client {
	return minioClient
}

// BeatObjectKey 生成伴奏音频在存储桶中的对象键
func BeatObjectKey(beatID, ext string) string {
	return fmt.Sprintf("beats/%s%s", beatID, ext)
}

// UploadBeatObject 将伴奏音频写入对象存储
func UploadBeatObject(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO client not initialized")
	}

	_, err := minioClient.PutObject(ctx, minioBucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("上传对象失败 %s: %w", objectKey, err)
	}

	logger.Info("伴奏文件已写入对象存储",
		logger.String("objectKey", objectKey),
		logger.Int64("size", size))
	return nil
}

// PresignBeatDownload 为伴奏对象生成限时下载地址。
// 下载请求被放行时由服务端解析出这个地址写回请求记录。
func PresignBeatDownload(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	if minioClient == nil {
		return "", fmt.Errorf("MinIO client not initialized")
	}

	reqParams := make(url.Values)
	presigned, err := minioClient.PresignedGetObject(ctx, minioBucket, objectKey, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("生成预签名地址失败 %s: %w", objectKey, err)
	}
	return presigned.String(), nil
}

// RemoveBeatObject 删除伴奏对象，对象不存在时静默成功
func RemoveBeatObject(ctx context.Context, objectKey string) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO client not initialized")
	}
	return minioClient.RemoveObject(ctx, minioBucket, objectKey, minio.RemoveObjectOptions{})
}
