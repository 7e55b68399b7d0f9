package upload

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &manager.UploadOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Blob_PutOpenDelete(t *testing.T) {
	fake := newFakeS3()
	b := &S3Blob{client: fake, uploader: fake, bucket: "tribu", prefix: "files"}
	ctx := context.Background()

	n, err := b.Put(ctx, "abc.gpx", bytes.NewReader([]byte("<gpx/>")), "application/gpx+xml")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, "application/gpx+xml", fake.types["files/abc.gpx"])
	assert.Equal(t, "s3://tribu/files/abc.gpx", b.Location("abc.gpx"))

	rc, err := b.Open(ctx, "abc.gpx")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "<gpx/>", string(data))

	require.NoError(t, b.Delete(ctx, "abc.gpx"))
	_, err = b.Open(ctx, "abc.gpx")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}
