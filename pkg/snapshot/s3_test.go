package snapshot

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePutObject struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutObject) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Mirror_Put(t *testing.T) {
	client := &fakePutObject{}
	m := newS3Mirror(client, "canvas", "/backups/place/")

	if err := m.Put(context.Background(), "place.png", "image/png", []byte("data")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := aws.ToString(client.in.Bucket); got != "canvas" {
		t.Errorf("bucket = %q", got)
	}
	if got := aws.ToString(client.in.Key); got != "backups/place/place.png" {
		t.Errorf("key = %q", got)
	}
	if got := aws.ToString(client.in.ContentType); got != "image/png" {
		t.Errorf("content type = %q", got)
	}
	if string(client.body) != "data" {
		t.Errorf("body = %q", client.body)
	}
}

func TestS3Mirror_KeyWithoutPrefix(t *testing.T) {
	m := newS3Mirror(&fakePutObject{}, "b", "")
	if got := m.Key("place.1.png"); got != "place.1.png" {
		t.Errorf("Key() = %q", got)
	}
}

func TestS3Mirror_PutError(t *testing.T) {
	boom := errors.New("denied")
	m := newS3Mirror(&fakePutObject{err: boom}, "b", "p")
	if err := m.Put(context.Background(), "x.png", "", nil); !errors.Is(err, boom) {
		t.Errorf("Put error = %v, want wrapped %v", err, boom)
	}
}

func TestNewS3Mirror_RequiresBucket(t *testing.T) {
	if _, err := NewS3Mirror(context.Background(), S3Config{}); err == nil {
		t.Error("NewS3Mirror accepted an empty bucket")
	}
}
