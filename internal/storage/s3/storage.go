// Package s3 implements the BlobStore interface for AWS S3 and S3-compatible storage.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/securepass/securepass/internal/storage"
)

const (
	// maxAssemblyChunks caps how many chunks one assembly will stitch
	// (prevents overflow/DoS through a forged chunk plan).
	maxAssemblyChunks = 100000

	// multipartUploadPartSize is the size for S3 multipart upload parts (5MB minimum)
	multipartUploadPartSize = 5 * 1024 * 1024
)

// Config holds configuration for S3 blob storage.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Custom endpoint for MinIO, R2, or other S3-compatible services
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool // Use path-style addressing (required for MinIO)
}

// BlobStore implements storage.BlobStore for AWS S3 and S3-compatible storage.
type BlobStore struct {
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	bucket   string
}

// New creates a new S3 BlobStore with the given configuration.
func New(ctx context.Context, cfg Config) (*BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	var optFuncs []func(*config.LoadOptions) error
	if cfg.Region != "" {
		optFuncs = append(optFuncs, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFuncs = append(optFuncs, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, optFuncs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = multipartUploadPartSize
	})

	// Verify bucket access with a HEAD request
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access S3 bucket %q: %w", cfg.Bucket, err)
	}

	slog.Info("S3 blob storage initialized",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"path_style", cfg.PathStyle,
	)

	return &BlobStore{
		client:   client,
		presign:  s3.NewPresignClient(client),
		uploader: uploader,
		bucket:   cfg.Bucket,
	}, nil
}

// validateKey ensures the S3 key doesn't contain path traversal attacks or
// dangerous characters.
func (s *BlobStore) validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty key not allowed")
	}
	if strings.ContainsRune(key, '\x00') {
		return fmt.Errorf("null bytes not allowed in key")
	}
	if strings.Contains(key, "%") {
		return fmt.Errorf("encoded characters not allowed in key")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("path traversal not allowed: %s", key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == "/" {
		return fmt.Errorf("invalid key: %s", key)
	}
	return nil
}

// Put writes data from the reader to S3 under the given key.
// Uses streaming multipart upload to avoid loading the blob into memory.
func (s *BlobStore) Put(ctx context.Context, key string, reader io.Reader, size int64) error {
	if err := s.validateKey(key); err != nil {
		return storage.NewStorageErrorWithMessage("Put", key, err, "key validation failed")
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   reader,
	})
	if err != nil {
		return storage.NewStorageError("Put", key, err)
	}

	slog.Debug("blob stored in S3", "key", key, "size", size)
	return nil
}

// Get returns a reader for the stored blob.
func (s *BlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := s.validateKey(key); err != nil {
		return nil, storage.NewStorageErrorWithMessage("Get", key, err, "key validation failed")
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, storage.NewStorageError("Get", key, storage.ErrBlobNotFound)
		}
		return nil, storage.NewStorageError("Get", key, err)
	}

	return result.Body, nil
}

// Delete removes a blob from S3. S3 does not error on deleting missing keys.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	if err := s.validateKey(key); err != nil {
		return storage.NewStorageErrorWithMessage("Delete", key, err, "key validation failed")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return storage.NewStorageError("Delete", key, err)
	}

	slog.Debug("blob deleted from S3", "key", key)
	return nil
}

// Exists checks whether a blob exists and returns its size.
func (s *BlobStore) Exists(ctx context.Context, key string) (bool, int64, error) {
	if err := s.validateKey(key); err != nil {
		return false, 0, storage.NewStorageErrorWithMessage("Exists", key, err, "key validation failed")
	}

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, 0, nil
		}
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return false, 0, nil
		}
		return false, 0, storage.NewStorageError("Exists", key, err)
	}

	size := int64(0)
	if result.ContentLength != nil {
		size = *result.ContentLength
	}
	return true, size, nil
}

// PresignPut returns a URL that lets a client PUT the blob directly.
func (s *BlobStore) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := s.validateKey(key); err != nil {
		return "", storage.NewStorageErrorWithMessage("PresignPut", key, err, "key validation failed")
	}

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", storage.NewStorageError("PresignPut", key, err)
	}

	return req.URL, nil
}

// AssembleChunks concatenates chunk blobs into destKey using an S3 multipart
// upload, streaming one chunk at a time so memory stays bounded regardless
// of file size. Returns the assembled size.
func (s *BlobStore) AssembleChunks(ctx context.Context, chunkKeys []string, destKey string) (int64, error) {
	if err := s.validateKey(destKey); err != nil {
		return 0, storage.NewStorageErrorWithMessage("AssembleChunks", destKey, err, "key validation failed")
	}
	if len(chunkKeys) == 0 || len(chunkKeys) > maxAssemblyChunks {
		return 0, storage.NewStorageErrorWithMessage("AssembleChunks", destKey, nil,
			fmt.Sprintf("invalid chunk count: %d", len(chunkKeys)))
	}

	startTime := time.Now()

	slog.Info("assembling chunks in S3",
		"dest_key", destKey,
		"total_chunks", len(chunkKeys),
	)

	createResp, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(destKey),
	})
	if err != nil {
		return 0, storage.NewStorageError("AssembleChunks", destKey, err)
	}

	uploadID := createResp.UploadId
	abort := func() {
		_, _ = s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{ //nolint:errcheck // Best-effort cleanup
			Bucket:   aws.String(s.bucket),
			Key:      aws.String(destKey),
			UploadId: uploadID,
		})
	}

	var completedParts []types.CompletedPart
	var totalBytes int64

	for i, chunkKey := range chunkKeys {
		chunkReader, err := s.Get(ctx, chunkKey)
		if err != nil {
			abort()
			if errors.Is(err, storage.ErrBlobNotFound) {
				return 0, storage.NewStorageErrorWithMessage("AssembleChunks", chunkKey, err,
					fmt.Sprintf("chunk %d missing during assembly", i))
			}
			return 0, err
		}

		// Chunks are bounded by the configured chunk size, so buffering
		// one at a time is safe.
		chunkData, readErr := io.ReadAll(chunkReader)
		chunkReader.Close()
		if readErr != nil {
			abort()
			return 0, storage.NewStorageError("AssembleChunks", chunkKey, readErr)
		}

		totalBytes += int64(len(chunkData))

		// S3 part numbers are 1-indexed
		partResp, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(destKey),
			PartNumber: aws.Int32(int32(i + 1)),
			UploadId:   uploadID,
			Body:       bytes.NewReader(chunkData),
		})
		if err != nil {
			abort()
			return 0, storage.NewStorageError("AssembleChunks", chunkKey, err)
		}

		completedParts = append(completedParts, types.CompletedPart{
			ETag:       partResp.ETag,
			PartNumber: aws.Int32(int32(i + 1)),
		})

		if (i+1)%100 == 0 || i == len(chunkKeys)-1 {
			slog.Debug("chunk assembly progress",
				"dest_key", destKey,
				"chunks_processed", i+1,
				"total_chunks", len(chunkKeys),
				"bytes_assembled", totalBytes,
			)
		}
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(destKey),
		UploadId: uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completedParts,
		},
	})
	if err != nil {
		abort()
		return 0, storage.NewStorageError("AssembleChunks", destKey, err)
	}

	duration := time.Since(startTime)
	slog.Info("chunk assembly complete",
		"dest_key", destKey,
		"total_chunks", len(chunkKeys),
		"total_bytes", totalBytes,
		"duration_ms", duration.Milliseconds(),
	)

	return totalBytes, nil
}

// HealthCheck verifies that the bucket is accessible with a HEAD request.
// Includes a 5-second timeout to prevent indefinite blocking on network issues.
func (s *BlobStore) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.client.HeadBucket(checkCtx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return storage.NewStorageErrorWithMessage("HealthCheck", s.bucket, err, "S3 bucket not accessible")
	}
	return nil
}
