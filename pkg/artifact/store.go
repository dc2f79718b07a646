package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"k8s.io/klog/v2"
)

// StoreCredentials holds access details for the S3-compatible bucket where
// combined outputs are archived.
type StoreCredentials struct {
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Bucket          string `json:"bucket"`
	Insecure        bool   `json:"insecure,omitempty"`
}

// LoadStoreCredentials reads and validates store credentials from a JSON
// file.
func LoadStoreCredentials(path string) (*StoreCredentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	var creds StoreCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials JSON: %w", err)
	}

	if err := creds.validate(); err != nil {
		return nil, err
	}
	return &creds, nil
}

func (c *StoreCredentials) validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("credentials: endpoint is required")
	}
	if c.AccessKeyID == "" {
		return fmt.Errorf("credentials: access_key_id is required")
	}
	if c.SecretAccessKey == "" {
		return fmt.Errorf("credentials: secret_access_key is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("credentials: bucket is required")
	}
	return nil
}

// ObjectInfo describes an archived output object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store archives run outputs in an S3-compatible bucket.
type Store struct {
	mc     *minio.Client
	bucket string
}

// NewStore creates a store client from the given credentials.
func NewStore(creds *StoreCredentials) (*Store, error) {
	mc, err := minio.New(creds.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(creds.AccessKeyID, creds.SecretAccessKey, ""),
		Secure: !creds.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("creating store client: %w", err)
	}
	return &Store{mc: mc, bucket: creds.Bucket}, nil
}

// Upload sends a local file to the bucket under the given key.
func (s *Store) Upload(ctx context.Context, path, key string) error {
	info, err := s.mc.FPutObject(ctx, s.bucket, key, path, minio.PutObjectOptions{
		ContentType: "application/yaml",
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	klog.V(2).Infof("uploaded %s (%d bytes)", key, info.Size)
	return nil
}

// ListByPrefix returns objects whose key starts with prefix, newest first.
func (s *Store) ListByPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for obj := range s.mc.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("listing objects: %w", obj.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, nil
}

// Delete removes a single object from the bucket.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.mc.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Rotate keeps only the keepLast newest objects matching prefix and deletes
// the rest, returning the deleted keys.
func (s *Store) Rotate(ctx context.Context, prefix string, keepLast int) ([]string, error) {
	if keepLast <= 0 {
		return nil, nil
	}

	objects, err := s.ListByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if len(objects) <= keepLast {
		return nil, nil
	}

	var deleted []string
	for _, obj := range objects[keepLast:] {
		if err := s.Delete(ctx, obj.Key); err != nil {
			return deleted, fmt.Errorf("rotating %s: %w", obj.Key, err)
		}
		deleted = append(deleted, obj.Key)
	}
	klog.V(2).Infof("rotated prefix %q: kept %d, deleted %d", prefix, keepLast, len(deleted))
	return deleted, nil
}
