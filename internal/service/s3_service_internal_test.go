package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"wopi-gateway/internal/errs"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockObjectAPI struct {
	mock.Mock
}

func (m *mockObjectAPI) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if out, ok := args.Get(0).(*s3.GetObjectOutput); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if out, ok := args.Get(0).(*s3.PutObjectOutput); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockObjectAPI) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	if out, ok := args.Get(0).(*s3.DeleteObjectOutput); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestS3Service_GetObject(t *testing.T) {
	api := new(mockObjectAPI)
	svc := &S3Service{client: api, bucket: "docs"}
	ctx := context.Background()

	api.On("GetObject", ctx, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Bucket) == "docs" && aws.ToString(in.Key) == "files/f/v1"
	})).Return(&s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader("hello")),
		ContentLength: aws.Int64(5),
	}, nil)

	body, size, err := svc.GetObject(ctx, "files/f/v1")
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(5), size)
}

func TestS3Service_GetObjectMissing(t *testing.T) {
	api := new(mockObjectAPI)
	svc := &S3Service{client: api, bucket: "docs"}

	api.On("GetObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{})

	_, _, err := svc.GetObject(context.Background(), "files/f/v9")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestS3Service_PutAndDelete(t *testing.T) {
	api := new(mockObjectAPI)
	svc := &S3Service{client: api, bucket: "docs"}
	ctx := context.Background()

	api.On("PutObject", ctx, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "files/f/v2" &&
			aws.ToInt64(in.ContentLength) == 3 &&
			aws.ToString(in.ContentType) == "application/pdf"
	})).Return(&s3.PutObjectOutput{}, nil)
	api.On("DeleteObject", ctx, mock.Anything).Return(nil, errors.New("access denied"))

	require.NoError(t, svc.PutObject(ctx, "files/f/v2", strings.NewReader("pdf"), 3, "application/pdf"))
	assert.Error(t, svc.DeleteObject(ctx, "files/f/v2"))
	api.AssertExpectations(t)
}
