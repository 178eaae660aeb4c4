package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxAttachmentSize is the maximum allowed size for RFQ attachments and quotations (20MB).
	MaxAttachmentSize = 20 * 1024 * 1024
	// FolderAttachments is the S3 prefix for RFQ attachments.
	FolderAttachments = "rfq-attachments"
	// FolderQuotations is the S3 prefix for quotation PDFs.
	FolderQuotations = "quotations"
)

// ErrDisabled is returned when no bucket is configured.
var ErrDisabled = errors.New("file storage is not configured")

// Allowed attachment extensions and their MIME types.
var (
	AllowedAttachmentExtensions = map[string]string{
		".pdf":  "application/pdf",
		".doc":  "application/msword",
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
	}
	AllowedQuotationExtensions = map[string]string{
		".pdf": "application/pdf",
	}
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Bucket               string
	Endpoint             string
	PresignExpireMinutes int
}

// Upload is a presigned direct upload.
type Upload struct {
	Key         string    `json:"key"`
	UploadURL   string    `json:"upload_url"`
	ObjectURL   string    `json:"object_url"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// S3 issues pre-signed upload URLs for attachments.
type S3 struct {
	client *s3.Client
	cfg    S3Config
	logger *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or the default
// credential chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("bucket", cfg.Bucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{client: client, cfg: cfg, logger: logger}, nil
}

// ContentTypeFor returns the MIME type for filename if its extension is in
// allowed.
func ContentTypeFor(filename string, allowed map[string]string) (string, bool) {
	ct, ok := allowed[strings.ToLower(path.Ext(filename))]
	return ct, ok
}

// AttachmentKey returns rfq-attachments/{rfq_id}/{uuid}{ext}.
func AttachmentKey(rfqID uuid.UUID, filename string) string {
	return path.Join(FolderAttachments, rfqID.String(), uuid.NewString()+strings.ToLower(path.Ext(filename)))
}

// QuotationKey returns quotations/{invite_id}/{uuid}.pdf.
func QuotationKey(inviteID uuid.UUID) string {
	return path.Join(FolderQuotations, inviteID.String(), uuid.NewString()+".pdf")
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// PresignUpload returns a pre-signed PUT URL for key. The client must send
// exactly size bytes with the given content type.
func (s *S3) PresignUpload(ctx context.Context, key, contentType string, size int64) (*Upload, error) {
	expires := s.PresignExpire()
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}
	s.logger.Debug("presigned upload", zap.String("key", key))
	return &Upload{
		Key:         key,
		UploadURL:   req.URL,
		ObjectURL:   s.ObjectURL(key),
		ContentType: contentType,
		ExpiresAt:   time.Now().Add(expires).UTC(),
	}, nil
}

// ObjectURL returns the unsigned URL of an object.
func (s *S3) ObjectURL(key string) string {
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.Endpoint, "/"), s.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}
