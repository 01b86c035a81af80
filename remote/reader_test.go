package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	data []byte
}

func (f *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	start, end := 0, len(f.data)-1
	if in.Range != nil {
		_, _ = fmt.Sscanf(*in.Range, "bytes=%d-%d", &start, &end)
	}
	if end >= len(f.data) {
		end = len(f.data) - 1
	}
	body := f.data[start : end+1]
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func (f *fakeClient) HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(f.data)))}, nil
}

func TestObject_Open(t *testing.T) {
	data := []byte(strings.Repeat("0123456789", 20))
	client := &fakeClient{data: data}

	obj, err := Open(client, "bucket", "key")
	require.NoError(t, err)
	assert.EqualValues(t, len(data), obj.Size())
}

func TestObject_ReadAt(t *testing.T) {
	data := []byte(strings.Repeat("0123456789", 20))
	obj := OpenWithSize(&fakeClient{data: data}, "bucket", "key", int64(len(data)))

	buf := make([]byte, 10)
	n, err := obj.ReadAt(buf, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, data[5:15], buf)
}

func TestObject_ReadAt_PastEndTruncates(t *testing.T) {
	data := []byte("hello world")
	obj := OpenWithSize(&fakeClient{data: data}, "bucket", "key", int64(len(data)))

	buf := make([]byte, 20)
	n, err := obj.ReadAt(buf, 6)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "world", string(buf[:n]))
}

func TestObject_SequentialRead(t *testing.T) {
	data := []byte(strings.Repeat("abcdefghij", 5))
	obj := OpenWithSize(&fakeClient{data: data}, "bucket", "key", int64(len(data)), func(o *Options) {
		o.BufferSize = 8
	})

	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(got))
}

func TestObject_Seek(t *testing.T) {
	data := []byte("0123456789")
	obj := OpenWithSize(&fakeClient{data: data}, "bucket", "key", int64(len(data)))

	pos, err := obj.Seek(5, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 5, pos)

	_, err = obj.Seek(0, io.SeekEnd)
	assert.ErrorIs(t, err, ErrSeekPastLastByte)
}

func TestObject_Clone(t *testing.T) {
	data := []byte("hello world")
	obj := OpenWithSize(&fakeClient{data: data}, "bucket", "key", int64(len(data)))

	_, err := obj.Seek(6, io.SeekStart)
	require.NoError(t, err)

	clone := obj.Clone()
	buf := make([]byte, 5)
	n, err := clone.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}
