// Package vault stores database snapshots and customer photos in an
// S3-compatible bucket and enforces a keep-N retention policy on snapshots.
package vault

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	backupPrefix = "db_backups/"
	photoPrefix  = "uploads/"

	// Retention floor: a misconfigured keep count can never wipe the vault
	// down to nothing.
	minKeepCount     = 5
	defaultKeepCount = 50
)

type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // non-AWS S3 endpoints (minio etc.); empty means AWS
	KeepCount int
}

type Vault struct {
	client *s3.Client
	cfg    Config
}

func New(ctx context.Context, cfg Config) (*Vault, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("vault: bucket is required")
	}
	if cfg.KeepCount <= 0 {
		cfg.KeepCount = defaultKeepCount
	}
	if cfg.KeepCount < minKeepCount {
		cfg.KeepCount = minKeepCount
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("vault: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Vault{client: client, cfg: cfg}, nil
}

func (v *Vault) key(parts ...string) string {
	if v.cfg.Prefix != "" {
		parts = append([]string{v.cfg.Prefix}, parts...)
	}
	return path.Join(parts...)
}

// UploadBackup stores one snapshot under a timestamped key and returns the key.
func (v *Vault) UploadBackup(ctx context.Context, data []byte) (string, error) {
	key := v.key(backupPrefix, fmt.Sprintf("bay_delivery_%s.json", time.Now().UTC().Format("20060102T150405Z")))
	_, err := v.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(v.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("vault: upload backup: %w", err)
	}
	return key, nil
}

// UploadPhoto stores a customer photo and returns the key.
func (v *Vault) UploadPhoto(ctx context.Context, fileName, contentType string, data []byte) (string, error) {
	if fileName == "" {
		return "", fmt.Errorf("vault: file name is required")
	}
	key := v.key(photoPrefix, fmt.Sprintf("%d_%s", time.Now().UTC().UnixNano(), path.Base(fileName)))
	_, err := v.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(v.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("vault: upload photo: %w", err)
	}
	return key, nil
}

// PruneBackups deletes the oldest snapshots beyond the configured keep count
// and returns how many were removed. Photos are never pruned.
func (v *Vault) PruneBackups(ctx context.Context) (int, error) {
	prefix := v.key(backupPrefix) + "/"

	type object struct {
		key      string
		modified time.Time
	}
	var objects []object

	paginator := s3.NewListObjectsV2Paginator(v.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(v.cfg.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("vault: list backups: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || obj.LastModified == nil {
				continue
			}
			objects = append(objects, object{key: *obj.Key, modified: *obj.LastModified})
		}
	}

	if len(objects) <= v.cfg.KeepCount {
		return 0, nil
	}

	// Newest first; everything past KeepCount goes.
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].modified.After(objects[j].modified)
	})

	deleted := 0
	for _, obj := range objects[v.cfg.KeepCount:] {
		_, err := v.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(v.cfg.Bucket),
			Key:    aws.String(obj.key),
		})
		if err != nil {
			return deleted, fmt.Errorf("vault: delete %s: %w", obj.key, err)
		}
		deleted++
	}
	return deleted, nil
}
