// Package blob 商品图片存储，基于 gocloud.dev/blob。
// 本地 file:// 存储由后台服务以 /media 静态目录对外提供；s3://、gs:// 存储使用签名地址。
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/example/farmcart/internal/config"
)

// MaxUploadSize 单张图片上限
const MaxUploadSize = 8 << 20

var (
	ErrEmptyName      = errors.New("blob name is required")
	ErrTooLarge       = errors.New("blob exceeds size limit")
	ErrUnsupportedExt = errors.New("unsupported image type")
)

var allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// Ref 已上传对象的键
type Ref string

// Store 图片存储
type Store interface {
	Upload(ctx context.Context, name string, r io.Reader) (Ref, error)
	DownloadURL(ctx context.Context, ref Ref) (string, error)
}

// BucketStore 把图片写入 bucket，按月份分目录
type BucketStore struct {
	bucket    *blob.Bucket
	baseURL   string
	localRoot string
	signTTL   time.Duration
	now       func() time.Time
}

// NewBucketStore baseURL 非空时下载地址为 baseURL/<ref>，否则使用 bucket 的签名地址
func NewBucketStore(bucket *blob.Bucket, baseURL string, signTTL time.Duration) *BucketStore {
	if signTTL <= 0 {
		signTTL = time.Hour
	}
	return &BucketStore{
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		signTTL: signTTL,
		now:     time.Now,
	}
}

// OpenLocal 打开本地目录作为 bucket，目录不存在时创建
func OpenLocal(root, baseURL string) (*BucketStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	bucket, err := fileblob.OpenBucket(root, nil)
	if err != nil {
		return nil, fmt.Errorf("open blob root: %w", err)
	}
	s := NewBucketStore(bucket, baseURL, 0)
	s.localRoot = root
	return s, nil
}

// Open 按配置打开存储：bucket_url 为空时使用本地 root 目录
func Open(ctx context.Context, cfg *config.BlobConfig) (*BucketStore, error) {
	if cfg.BucketURL == "" {
		return OpenLocal(cfg.Root, cfg.BaseURL)
	}
	u, err := url.Parse(cfg.BucketURL)
	if err != nil {
		return nil, fmt.Errorf("parse bucket url: %w", err)
	}
	if u.Scheme == fileblob.Scheme {
		return OpenLocal(filepath.FromSlash(u.Path), cfg.BaseURL)
	}
	bucket, err := blob.OpenBucket(ctx, cfg.BucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", u.Scheme, err)
	}
	return NewBucketStore(bucket, cfg.BaseURL, time.Duration(cfg.SignedURLMinutes)*time.Minute), nil
}

// LocalRoot 本地存储的根目录；非本地存储返回 false
func (s *BucketStore) LocalRoot() (string, bool) {
	return s.localRoot, s.localRoot != ""
}

// Upload 只保留原文件名的扩展名，对象名用 uuid 生成。超出大小限制时放弃写入。
func (s *BucketStore) Upload(ctx context.Context, name string, r io.Reader) (Ref, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExt[ext] {
		return "", ErrUnsupportedExt
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := path.Join("products", s.now().UTC().Format("2006/01"), uuid.NewString()+ext)
	// 取消 wctx 后 Close 会丢弃已写入的内容
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w, err := s.bucket.NewWriter(wctx, key, &blob.WriterOptions{ContentType: mime.TypeByExtension(ext)})
	if err != nil {
		return "", err
	}
	n, err := io.Copy(w, io.LimitReader(r, MaxUploadSize+1))
	if err == nil && n > MaxUploadSize {
		err = ErrTooLarge
	}
	if err != nil {
		cancel()
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return Ref(key), nil
}

// DownloadURL 对外访问地址
func (s *BucketStore) DownloadURL(ctx context.Context, ref Ref) (string, error) {
	key := strings.TrimLeft(string(ref), "/")
	if s.baseURL != "" {
		return s.baseURL + "/" + key, nil
	}
	return s.bucket.SignedURL(ctx, key, &blob.SignedURLOptions{Expiry: s.signTTL})
}

// Close 关闭 bucket
func (s *BucketStore) Close() error {
	return s.bucket.Close()
}
