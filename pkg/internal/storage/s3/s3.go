// Package s3 处理远端对象存储操作，保存与拉取密文副本.
package s3

import (
	"context"
	"fmt"
	"net/url"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/filevault/pkg/configs"
	nlog "github.com/yeisme/filevault/pkg/log"
)

// Client 包装 MinIO 客户端，固定操作配置指定的 bucket.
type Client struct {
	*minio.Client

	bucket string
	region string
}

// New 初始化 MinIO 客户端，若 bucket 不存在则尝试创建.
func New(ctx context.Context, cfg *configs.S3Config) (*Client, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo("filevault", configs.AppVersion)

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}

	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}

		nlog.Logger().Info().Str("bucket", cfg.Bucket).Msg("bucket created")
	}

	nlog.Logger().Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.Bucket).Msg("s3 connected")

	return &Client{Client: cli, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// Bucket 返回客户端绑定的 bucket 名称.
func (c *Client) Bucket() string {
	return c.bucket
}

// PutFile 把本地文件上传到指定对象键.
func (c *Client) PutFile(ctx context.Context, key, path, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := c.FPutObject(ctx, c.bucket, key, path, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}

	return nil
}

// FetchToFile 把远端对象下载到本地路径. 下载前先确认对象存在，
// 让远端缺失和网络故障产生可区分的错误.
func (c *Client) FetchToFile(ctx context.Context, key, path string) error {
	if _, err := c.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{}); err != nil {
		return fmt.Errorf("stat object %s: %w", key, err)
	}

	if err := c.FGetObject(ctx, c.bucket, key, path, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("fetch object %s: %w", key, err)
	}

	return nil
}

// Exists 判断对象是否存在于远端.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return false, nil
		}

		return false, fmt.Errorf("stat object %s: %w", key, err)
	}

	return true, nil
}

// Remove 删除远端对象. 对象不存在时视为成功.
func (c *Client) Remove(ctx context.Context, key string) error {
	if err := c.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}

	return nil
}

// HealthCheck 简单的健康检查，通过列出桶来验证连接.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.ListBuckets(ctx)
	return err
}

// Close 关闭 S3 客户端连接（无实际操作，接口兼容）.
func (c *Client) Close() error {
	return nil
}
