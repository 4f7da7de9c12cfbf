package objstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/templesanathan/internal/netx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Endpoint:  "http://127.0.0.1:9000",
		Region:    "us-east-1",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "avatars",
	}
}

func stubClients(t *testing.T) {
	t.Helper()
	origLoad, origNew, origPre := loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient
	origPut, origGet := presignPutObject, presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient = origLoad, origNew, origPre
		presignPutObject, presignGetObject = origPut, origGet
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		require.NotNil(t, opts.BaseEndpoint)
		assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
		assert.True(t, opts.UsePathStyle)
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient { return &s3.PresignClient{} }
}

func TestUpload_PresignsAndPuts(t *testing.T) {
	stubClients(t)

	var gotBody, gotCT string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody, gotCT = string(b), r.Header.Get("Content-Type")
	}))
	defer ts.Close()

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		assert.Equal(t, "avatars", *in.Bucket)
		assert.Equal(t, "u1/1700000000000.png", *in.Key)
		return &v4.PresignedHTTPRequest{URL: ts.URL + "/avatars/u1/1700000000000.png?sig=x"}, nil
	}

	s := New(testConfig(), netx.NewClient(time.Second))
	require.NoError(t, s.Upload(context.Background(), "u1/1700000000000.png", strings.NewReader("img"), "image/png"))
	assert.Equal(t, "img", gotBody)
	assert.Equal(t, "image/png", gotCT)
}

func TestUpload_PresignError(t *testing.T) {
	stubClients(t)
	presignPutObject = func(*s3.PresignClient, context.Context, *s3.PutObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("no creds")
	}

	err := New(testConfig(), netx.NewClient(time.Second)).Upload(context.Background(), "k", strings.NewReader(""), "")
	assert.ErrorContains(t, err, "presign put k")
}

func TestSignedURL_ClampsTTL(t *testing.T) {
	stubClients(t)
	var got time.Duration
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		var po s3.PresignOptions
		for _, fn := range optFns {
			fn(&po)
		}
		got = po.Expires
		return &v4.PresignedHTTPRequest{URL: "https://signed/" + *in.Key}, nil
	}

	u, err := New(testConfig(), netx.NewClient(time.Second)).SignedURL(context.Background(), "u1/a.png", 365*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://signed/u1/a.png", u)
	assert.Equal(t, MaxPresignTTL, got)
}

func TestLoadConfigError(t *testing.T) {
	stubClients(t)
	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("bad config")
	}
	_, err := New(testConfig(), netx.NewClient(time.Second)).SignedURL(context.Background(), "k", time.Hour)
	assert.ErrorContains(t, err, "bad config")
}

func TestPublicURL(t *testing.T) {
	s := New(testConfig(), nil)
	_, ok := s.PublicURL("u1/a.png")
	assert.False(t, ok)

	cfg := testConfig()
	cfg.PublicBaseURL = "https://proj.supabase.co/storage/v1/object/public/"
	u, ok := New(cfg, nil).PublicURL("u1/a.png")
	assert.True(t, ok)
	assert.Equal(t, "https://proj.supabase.co/storage/v1/object/public/avatars/u1/a.png", u)
}
