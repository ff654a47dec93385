// Package s3 implements the remote.Store interface on an S3 bucket.
// Folders are represented as zero-byte "path/" marker keys so an empty
// local directory still shows up in bucket listings.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mirrorbox/mirrorbox/internal/remote"
)

// Config holds the bucket settings for an S3 store.
type Config struct {
	Bucket          string
	Prefix          string
	Region          string
	StorageClass    string // e.g. STANDARD, STANDARD_IA, GLACIER_IR
	AccessKeyID     string // optional; default credential chain when empty
	SecretAccessKey string
}

type Store struct {
	client       *awss3.Client
	uploader     *manager.Uploader
	bucket       string
	prefix       string
	storageClass types.StorageClass
}

// New creates a Store over an existing S3 client.
func New(client *awss3.Client, bucket, prefix string, storageClass types.StorageClass) *Store {
	return &Store{
		client:       client,
		uploader:     manager.NewUploader(client),
		bucket:       bucket,
		prefix:       strings.Trim(prefix, "/"),
		storageClass: storageClass,
	}
}

// NewFromConfig resolves AWS credentials and builds a Store.
func NewFromConfig(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket missing")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	storageClass := types.StorageClassStandard
	if cfg.StorageClass != "" {
		storageClass = types.StorageClass(cfg.StorageClass)
	}

	return New(awss3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix, storageClass), nil
}

func (s *Store) fullKey(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if s.prefix == "" {
		return rel
	}
	return s.prefix + "/" + rel
}

func (s *Store) folderKey(rel string) string {
	if rel == "" {
		if s.prefix == "" {
			return ""
		}
		return s.prefix + "/"
	}
	return s.fullKey(rel) + "/"
}

// EnsureFolder writes the folder marker key. The bucket root needs none.
func (s *Store) EnsureFolder(ctx context.Context, rel string) error {
	key := s.folderKey(rel)
	if key == "" {
		return nil
	}
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         strings.NewReader(""),
		StorageClass: s.storageClass,
	})
	if err != nil {
		return wrapErr("mkdir", rel, err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, rel string, r io.Reader, size int64, mediaType string) error {
	input := &awss3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(s.fullKey(rel)),
		Body:         r,
		StorageClass: s.storageClass,
	}
	if mediaType != "" {
		input.ContentType = aws.String(mediaType)
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return wrapErr("put", rel, err)
	}
	return nil
}

// Move is copy-then-delete; S3 has no rename.
func (s *Store) Move(ctx context.Context, src, dst string) error {
	_, err := s.client.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:       aws.String(s.bucket),
		CopySource:   aws.String(s.bucket + "/" + s.fullKey(src)),
		Key:          aws.String(s.fullKey(dst)),
		StorageClass: s.storageClass,
	})
	if err != nil {
		return wrapErr("move", src, err)
	}
	_, err = s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(src)),
	})
	if err != nil {
		return wrapErr("move cleanup", src, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, rel string, recursive bool) error {
	if recursive {
		return s.deletePrefix(ctx, rel)
	}

	// S3 deletes are blind; stat first so absent paths report ErrNotFound
	// the way the Store contract wants.
	if _, err := s.Stat(ctx, rel); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(rel)),
	})
	if err != nil {
		return wrapErr("delete", rel, err)
	}
	return nil
}

// deletePrefix removes the folder marker and everything under it.
func (s *Store) deletePrefix(ctx context.Context, rel string) error {
	prefix := s.folderKey(rel)
	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	deleted := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return wrapErr("delete list", rel, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}
		out, err := s.client.DeleteObjects(ctx, &awss3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return wrapErr("delete batch", rel, err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("s3: delete %q: %s: %s", aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message))
		}
		deleted += len(objects)
	}

	if deleted == 0 {
		return fmt.Errorf("s3: delete %q: %w", rel, remote.ErrNotFound)
	}
	return nil
}

func (s *Store) Stat(ctx context.Context, rel string) (*remote.Info, error) {
	key := s.fullKey(rel)
	out, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// A folder marker, maybe?
		folderOut, folderErr := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.folderKey(rel)),
		})
		if folderErr == nil {
			return &remote.Info{
				Name:    baseName(rel),
				Path:    rel,
				Dir:     true,
				ModTime: aws.ToTime(folderOut.LastModified),
			}, nil
		}
		return nil, wrapErr("stat", rel, err)
	}

	info := &remote.Info{
		Name:    baseName(rel),
		Path:    rel,
		Size:    aws.ToInt64(out.ContentLength),
		ModTime: aws.ToTime(out.LastModified),
	}
	// S3 ETags of single-part uploads are plain MD5.
	etag := strings.Trim(aws.ToString(out.ETag), `"`)
	if !strings.Contains(etag, "-") {
		info.MD5 = etag
	}
	return info, nil
}

func baseName(rel string) string {
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		return rel[i+1:]
	}
	return rel
}

// wrapErr maps AWS response errors onto the remote sentinels.
func wrapErr(op, rel string, err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		switch re.HTTPStatusCode() {
		case http.StatusNotFound:
			return fmt.Errorf("s3: %s %q: %w", op, rel, remote.ErrNotFound)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("s3: %s %q: %w: %v", op, rel, remote.ErrUnauthorized, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("s3: %s %q: %w: %v", op, rel, remote.ErrRateLimited, err)
		}
		if re.HTTPStatusCode() >= 500 {
			return fmt.Errorf("s3: %s %q: %w: %v", op, rel, remote.ErrUnavailable, err)
		}
	}
	return fmt.Errorf("s3: %s %q: %w", op, rel, err)
}

var _ remote.Store = (*Store)(nil)
