package plan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"archaeologist/internal/types"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string // object key prefix, default "plans"
	UseSSL    bool
}

// S3Store writes one JSON object per plan under <prefix>/<repo>/<id>.json and
// keeps an <prefix>/_ids/<id> pointer object for lookup by id.
type S3Store struct {
	client     *minio.Client
	bucketName string
	region     string
	prefix     string
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
	prefix := strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if prefix == "" {
		prefix = "plans"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Store{
		client:     client,
		bucketName: bucket,
		region:     region,
		prefix:     prefix,
	}, nil
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

func (s *S3Store) Put(ctx context.Context, rec types.PlanRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := s.recordKey(rec.Repo, rec.ID)
	if err := s.putObject(ctx, key, body, "application/json"); err != nil {
		return err
	}
	return s.putObject(ctx, s.indexKey(rec.ID), []byte(key), "text/plain")
}

func (s *S3Store) Get(ctx context.Context, id string) (types.PlanRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.PlanRecord{}, fmt.Errorf("id is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return types.PlanRecord{}, fmt.Errorf("ensure bucket: %w", err)
	}
	key, err := s.getObject(ctx, s.indexKey(id))
	if err != nil {
		return types.PlanRecord{}, err
	}
	body, err := s.getObject(ctx, string(key))
	if err != nil {
		return types.PlanRecord{}, err
	}
	var rec types.PlanRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return types.PlanRecord{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec, nil
}

func (s *S3Store) List(ctx context.Context, repo string) ([]types.PlanRecord, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	prefix := s.prefix + "/"
	if repo != "" {
		prefix = s.repoPrefix(repo)
	}
	out := make([]types.PlanRecord, 0, 32)
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if obj.Key == "" || !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		body, err := s.getObject(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		var rec types.PlanRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", obj.Key, err)
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (s *S3Store) putObject(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (s *S3Store) getObject(ctx context.Context, key string) ([]byte, error) {
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

// repo ids are URLs; they are escaped into a single path segment.
func (s *S3Store) repoPrefix(repo string) string {
	return path.Join(s.prefix, escapeSegment(repo)) + "/"
}

func (s *S3Store) recordKey(repo, id string) string {
	return s.repoPrefix(repo) + escapeSegment(id) + ".json"
}

func (s *S3Store) indexKey(id string) string {
	return path.Join(s.prefix, "_ids", escapeSegment(id))
}

func escapeSegment(v string) string {
	r := strings.NewReplacer("/", "_", ":", "_", "?", "_", "#", "_", " ", "_")
	return r.Replace(strings.TrimSpace(v))
}
