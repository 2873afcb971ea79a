package staging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	bucket    string
	objects   map[string][]byte
	modified  map[string]time.Time
	deleteErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{bucket: "staging", objects: map[string][]byte{}, modified: map[string]time.Time{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.objects[key] = b
	f.modified[key] = time.Now()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	src, err := url.PathUnescape(aws.ToString(in.CopySource))
	if err != nil {
		return nil, err
	}
	src = strings.TrimPrefix(src, f.bucket+"/")
	b, ok := f.objects[src]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	f.objects[aws.ToString(in.Key)] = b
	f.modified[aws.ToString(in.Key)] = f.modified[src]
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for k, b := range f.objects {
		if !strings.HasPrefix(k, prefix) || strings.Contains(strings.TrimPrefix(k, prefix), "/") {
			continue
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(b))),
			LastModified: aws.Time(f.modified[k]),
		})
	}
	return out, nil
}

func TestS3_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := NewS3WithClient(fake, fake.bucket)

	require.NoError(t, s.Put(ctx, "input/retail_batch_1.csv", writeLocal(t, "abc")))
	fake.objects["input/.retail_batch_2.csv._COPYING_"] = []byte("partial")
	fake.objects["input/sub/deeper.csv"] = []byte("nested")

	objs, err := s.List(ctx, "input/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "input/retail_batch_1.csv", objs[0].Key)
	assert.Equal(t, int64(3), objs[0].Size)

	assert.Equal(t, "abc", readAll(t, s, "input/retail_batch_1.csv"))

	require.NoError(t, s.Move(ctx, "input/retail_batch_1.csv", "processed/retail_batch_1.csv"))
	_, inInput := fake.objects["input/retail_batch_1.csv"]
	_, inProcessed := fake.objects["processed/retail_batch_1.csv"]
	assert.False(t, inInput)
	assert.True(t, inProcessed)
}

func TestS3_NotFound(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := NewS3WithClient(fake, fake.bucket)

	_, err := s.Open(ctx, "input/nope.csv")
	assert.True(t, eris.Is(err, ErrNotFound))

	err = s.Move(ctx, "input/nope.csv", "processed/nope.csv")
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestS3_MoveDeleteFailure(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.deleteErr = errors.New("access denied")
	s := NewS3WithClient(fake, fake.bucket)
	require.NoError(t, s.Put(ctx, "input/a.csv", writeLocal(t, "a")))

	err := s.Move(ctx, "input/a.csv", "processed/a.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3 delete")
}
