package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"edulearn-backend/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Archive stores raw gateway payloads in Cloudflare R2 for audit.
// Writers treat it as best-effort: the authoritative copy of the payload
// lives on the purchase row; the archive exists so finance can pull the
// full provider history without touching the production database.
type R2Archive struct {
	client        *s3.Client
	bucketName    string
	uploadTimeout time.Duration
}

func NewR2Archive(ctx context.Context, accountID, accessKey, secretKey, bucketName string, uploadTimeout time.Duration) (*R2Archive, error) {
	if accountID == "" || accessKey == "" || bucketName == "" {
		logger.Info().Msg("R2 payload archive not configured. Archiving disabled.")
		return nil, nil
	}

	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithEndpointResolverWithOptions(r2Resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &R2Archive{
		client:        client,
		bucketName:    bucketName,
		uploadTimeout: uploadTimeout,
	}, nil
}

// ArchivePayload uploads one raw gateway payload keyed by purchase id and
// arrival time. Runs in the caller's goroutine but swallows all errors;
// failures are logged only.
func (a *R2Archive) ArchivePayload(ctx context.Context, purchaseID string, payload []byte) {
	if a == nil || len(payload) == 0 {
		return
	}

	key := fmt.Sprintf("gateway-payloads/%s/%d.json", strings.TrimSpace(purchaseID), time.Now().UnixNano())

	uploadCtx, cancel := context.WithTimeout(ctx, a.uploadTimeout)
	defer cancel()

	_, err := a.client.PutObject(uploadCtx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		logger.Warn().Err(err).Str("purchase_id", purchaseID).Msg("Failed to archive gateway payload")
		return
	}

	logger.Debug().Str("purchase_id", purchaseID).Str("key", key).Msg("Archived gateway payload")
}
