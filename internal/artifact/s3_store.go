package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mergemap/internal/types"
	"mergemap/internal/util/jsonutil"
)

var ErrNotFound = errors.New("artifact not found")

// Well-known artifact names within a run.
const (
	SourceReportName  = "source_analysis.json"
	TargetReportName  = "target_analysis.json"
	MergeStrategyName = "merge_strategy.txt"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Store persists finished run artifacts (analysis reports and the merge
// strategy) in an S3-compatible bucket, keyed by run id.
type S3Store struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Store{client: client, bucketName: bucket, region: region}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is nil")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// PutReport stores one analysis report under the run.
func (s *S3Store) PutReport(ctx context.Context, runID, name string, report *types.AnalysisReport) error {
	raw, err := jsonutil.MarshalNoEscapeIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return s.put(ctx, runID, name, raw, "application/json")
}

// PutStrategy stores the generated merge strategy text under the run.
func (s *S3Store) PutStrategy(ctx context.Context, runID, strategy string) error {
	return s.put(ctx, runID, MergeStrategyName, []byte(strategy), "text/plain")
}

func (s *S3Store) put(ctx context.Context, runID, name string, content []byte, contentType string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	runID = strings.TrimSpace(runID)
	name = strings.TrimSpace(name)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if name == "" {
		return fmt.Errorf("artifact name is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	key := objectKey(runID, name)
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// Get fetches one raw artifact.
func (s *S3Store) Get(ctx context.Context, runID, name string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	key := objectKey(runID, name)
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// GetURL returns a presigned download link for one artifact.
func (s *S3Store) GetURL(ctx context.Context, runID, name string) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("store is nil")
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, objectKey(runID, name), time.Hour, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func objectKey(runID, name string) string {
	return strings.TrimSpace(runID) + "/" + strings.TrimLeft(strings.TrimSpace(name), "/")
}
