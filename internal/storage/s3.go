package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config describes an S3-compatible media host (R2, S3, MinIO).
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	UsePathStyle    bool
}

type S3Client struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

func NewS3Client(ctx context.Context, cfg S3Config) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto" // R2 uses "auto" as region
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(creds),
		config.WithRegion(region),
		// one attempt per upload, callers own retry policy
		config.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		}
	})

	publicBaseURL := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if publicBaseURL == "" {
		if endpoint != "" {
			publicBaseURL = fmt.Sprintf("%s/%s", endpoint, cfg.Bucket)
		} else {
			publicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
		}
	}

	return &S3Client{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: publicBaseURL,
	}, nil
}

// ObjectExists checks if an object exists in the bucket
func (c *S3Client) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return true, nil
}

// Upload streams obj.Body to the bucket under obj.Key
func (c *S3Client) Upload(ctx context.Context, obj *Object) (*UploadResult, error) {
	input := &s3.PutObjectInput{
		Bucket:       aws.String(c.bucket),
		Key:          aws.String(obj.Key),
		Body:         obj.Body,
		ContentType:  aws.String(obj.ContentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
		Metadata:     obj.Metadata,
	}
	if obj.Size > 0 {
		input.ContentLength = aws.Int64(obj.Size)
	}

	result, err := c.client.PutObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", obj.Key, err)
	}

	return &UploadResult{
		Key:         obj.Key,
		URL:         c.GetPublicURL(obj.Key),
		ETag:        strings.Trim(aws.ToString(result.ETag), `"`),
		Size:        obj.Size,
		ContentType: obj.ContentType,
	}, nil
}

// List returns up to maxKeys objects directly under prefix
func (c *S3Client) List(ctx context.Context, prefix string, maxKeys int32) ([]ObjectInfo, error) {
	result, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(maxKeys),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	objects := make([]ObjectInfo, 0, len(result.Contents))
	for _, obj := range result.Contents {
		key := aws.ToString(obj.Key)
		objects = append(objects, ObjectInfo{
			Key:  key,
			URL:  c.GetPublicURL(key),
			Size: aws.ToInt64(obj.Size),
		})
	}
	return objects, nil
}

// Delete removes an object from the bucket
func (c *S3Client) Delete(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// GetPublicURL returns the public URL for the given key
func (c *S3Client) GetPublicURL(key string) string {
	return fmt.Sprintf("%s/%s", c.publicBaseURL, escapeKey(key))
}

func escapeKey(key string) string {
	segments := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}
