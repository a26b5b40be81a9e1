package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func newOfflineService() *S3Service {
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
		BaseEndpoint: aws.String("http://127.0.0.1:9000"),
		UsePathStyle: true,
	})
	return NewS3Service(client)
}

func TestGetObjectURLPresignsWithExpiry(t *testing.T) {
	svc := newOfflineService()
	url, err := svc.GetObjectURL(context.Background(), "exports", "taskhub/users/1/a.json", 10*time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "/exports/taskhub/users/1/a.json") {
		t.Fatalf("expected path-style key in url, got %s", url)
	}
	if !strings.Contains(url, "X-Amz-Expires=600") {
		t.Fatalf("expected 600s expiry in url, got %s", url)
	}
}

func TestS3ServiceRequiresBucket(t *testing.T) {
	svc := newOfflineService()
	ctx := context.Background()

	if _, err := svc.PutObject(ctx, strings.NewReader("{}"), PutOptions{Key: "k"}); err == nil {
		t.Fatal("expected error for missing bucket")
	}
	if _, err := svc.PutObject(ctx, strings.NewReader("{}"), PutOptions{Bucket: "b", Key: " / "}); err == nil {
		t.Fatal("expected error for missing key")
	}
	if _, err := svc.ListObjects(ctx, "", "p"); err == nil {
		t.Fatal("expected error for missing bucket")
	}
	if err := svc.DeletePrefix(ctx, "b", "  "); err == nil {
		t.Fatal("expected error for missing prefix")
	}
	if _, err := svc.GetObjectURL(ctx, "", "k", time.Minute); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}
