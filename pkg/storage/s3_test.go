package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

type fakePresigner struct {
	ttl time.Duration
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var o s3.PresignOptions
	for _, fn := range optFns {
		fn(&o)
	}
	f.ttl = o.Expires
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + *in.Key, Method: http.MethodGet}, nil
}

func TestUploadPublicURL(t *testing.T) {
	put := &fakePutter{}
	store := newStore(put, &fakePresigner{}, Options{Bucket: "wha7-images"}, nil)
	store.newID = func() string { return "0b7c" }

	got, err := store.Upload(context.Background(), "+1 555 0100", []byte("png-bytes"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, "https://wha7-images.s3.amazonaws.com/uploads/1_555_0100/0b7c.png", got)
	assert.Equal(t, "uploads/1_555_0100/0b7c.png", *put.input.Key)
	assert.Equal(t, "wha7-images", *put.input.Bucket)
	assert.Equal(t, "image/png", *put.input.ContentType)
	assert.Equal(t, "sender=%2B1+555+0100", *put.input.Tagging)
	assert.Equal(t, []byte("png-bytes"), put.body)
}

func TestUploadPresigned(t *testing.T) {
	presign := &fakePresigner{}
	store := newStore(&fakePutter{}, presign, Options{Bucket: "b", PresignTTL: 15 * time.Minute}, nil)
	store.newID = func() string { return "id" }

	got, err := store.Upload(context.Background(), "tg:7", []byte("x"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/uploads/tg_7/id.jpg", got)
	assert.Equal(t, 15*time.Minute, presign.ttl)
}

func TestUploadError(t *testing.T) {
	store := newStore(&fakePutter{err: errors.New("access denied")}, &fakePresigner{}, Options{Bucket: "b"}, nil)
	_, err := store.Upload(context.Background(), "s", []byte("x"), "image/png")
	assert.Error(t, err)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://b.s3.amazonaws.com/uploads/a%20b/c.png", PublicURL("b", "", "uploads/a b/c.png"))
	assert.Equal(t, "https://cdn.example/x/y.jpg", PublicURL("b", "https://cdn.example/", "x/y.jpg"))
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), Options{}, nil)
	assert.Error(t, err)
}
