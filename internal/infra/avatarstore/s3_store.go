package avatarstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanqian/user-accounts/internal/domain/account"
)

const (
	avatarContentType = "image/png"
	noSuchKey         = "NoSuchKey"
)

// S3Store keeps avatars in an S3-compatible bucket (MinIO, R2, S3).
type S3Store struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewS3Store constructs the storage adapter.
func NewS3Store(endpoint, accessKey, secretKey, bucket, region string, logger *slog.Logger) (*S3Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	useSSL := !strings.HasPrefix(strings.ToLower(strings.TrimSpace(endpoint)), "http://")
	client, err := minio.New(sanitizeEndpoint(endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Store{client: client, bucket: bucket, logger: logger.With("component", "avatarstore.s3")}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err == nil && exists {
		return nil
	}
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return err
	}
	return nil
}

// PutAvatar uploads the encoded avatar.
func (s *S3Store) PutAvatar(ctx context.Context, id int64, image []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectKey(id), bytes.NewReader(image), int64(len(image)), minio.PutObjectOptions{
		ContentType:      avatarContentType,
		DisableMultipart: true,
	})
	if err != nil {
		return fmt.Errorf("put avatar: %w", err)
	}
	return nil
}

// GetAvatar downloads the avatar; a missing object reports found=false.
func (s *S3Store) GetAvatar(ctx context.Context, id int64) ([]byte, bool, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("get avatar: %w", err)
	}
	defer obj.Close()
	if _, err := obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == noSuchKey {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("stat avatar: %w", err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, false, fmt.Errorf("read avatar: %w", err)
	}
	return data, true, nil
}

// DeleteAvatar removes the object. Removing a missing object succeeds.
func (s *S3Store) DeleteAvatar(ctx context.Context, id int64) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey(id), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete avatar: %w", err)
	}
	return nil
}

var _ account.AvatarStore = (*S3Store)(nil)

func objectKey(id int64) string {
	return "avatars/" + strconv.FormatInt(id, 10) + ".png"
}

// sanitizeEndpoint removes schemes and paths to satisfy minio.New expectations.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if strings.Contains(raw, "/") {
		parts := strings.Split(raw, "/")
		raw = parts[0]
	}
	return raw
}
