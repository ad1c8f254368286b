package s3_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory bucket store implementing the backend API. Listings
// return at most pageSize entries per call so pagination is exercised.
type fakeS3 struct {
	mu       sync.Mutex
	buckets  map[string]map[string][]byte
	pageSize int
	modTime  time.Time
	calls    []string
}

func newFakeS3(buckets ...string) *fakeS3 {
	f := &fakeS3{
		buckets:  make(map[string]map[string][]byte),
		pageSize: 2,
		modTime:  time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	for _, b := range buckets {
		f.buckets[b] = make(map[string][]byte)
	}
	return f
}

func (f *fakeS3) put(bucket, key, data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[bucket][key] = []byte(data)
}

func (f *fakeS3) object(bucket, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.buckets[bucket][key]
	return string(data), ok
}

func (f *fakeS3) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeS3) record(op, key string) {
	f.calls = append(f.calls, op+" "+key)
}

func (f *fakeS3) bucket(name *string) (map[string][]byte, error) {
	b, ok := f.buckets[aws.ToString(name)]
	if !ok {
		return nil, &types.NoSuchBucket{Message: aws.String("no such bucket")}
	}
	return b, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("HeadBucket", aws.ToString(in.Bucket))
	if _, err := f.bucket(in.Bucket); err != nil {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("HeadObject", aws.ToString(in.Key))
	b, err := f.bucket(in.Bucket)
	if err != nil {
		return nil, err
	}
	data, ok := b[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(data))),
		LastModified:  aws.Time(f.modTime),
	}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetObject", aws.ToString(in.Key))
	b, err := f.bucket(in.Bucket)
	if err != nil {
		return nil, err
	}
	data, ok := b[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(append([]byte(nil), data...))),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PutObject", aws.ToString(in.Key))
	b, err := f.bucket(in.Bucket)
	if err != nil {
		return nil, err
	}
	b[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) CopyObject(ctx context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	source, err := url.PathUnescape(aws.ToString(in.CopySource))
	if err != nil {
		return nil, err
	}
	srcBucket, srcKey, _ := strings.Cut(source, "/")
	f.record("CopyObject", srcKey+" -> "+aws.ToString(in.Key))

	src, err := f.bucket(aws.String(srcBucket))
	if err != nil {
		return nil, err
	}
	data, ok := src[srcKey]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	dst, err := f.bucket(in.Bucket)
	if err != nil {
		return nil, err
	}
	dst[aws.ToString(in.Key)] = data
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteObject", aws.ToString(in.Key))
	b, err := f.bucket(in.Bucket)
	if err != nil {
		return nil, err
	}
	delete(b, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	f.record("ListObjectsV2", prefix)
	b, err := f.bucket(in.Bucket)
	if err != nil {
		return nil, err
	}

	// Entries are keys or, with a delimiter, common prefixes.
	type entry struct {
		name   string
		common bool
	}
	seen := make(map[string]bool)
	var all []entry
	for key := range b {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if d := aws.ToString(in.Delimiter); d != "" {
			if i := strings.Index(rest, d); i >= 0 {
				cp := prefix + rest[:i+len(d)]
				if !seen[cp] {
					seen[cp] = true
					all = append(all, entry{name: cp, common: true})
				}
				continue
			}
		}
		all = append(all, entry{name: key})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].name < all[j].name })

	start := aws.ToString(in.ContinuationToken)
	limit := f.pageSize
	if in.MaxKeys != nil && int(*in.MaxKeys) < limit {
		limit = int(*in.MaxKeys)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	count := 0
	for _, e := range all {
		if start != "" && e.name <= start {
			continue
		}
		if count == limit {
			out.IsTruncated = aws.Bool(true)
			break
		}
		count++
		out.NextContinuationToken = aws.String(e.name)
		if e.common {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(e.name)})
			continue
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(e.name),
			Size:         aws.Int64(int64(len(b[e.name]))),
			LastModified: aws.Time(f.modTime),
		})
	}
	if !aws.ToBool(out.IsTruncated) {
		out.NextContinuationToken = nil
	}
	return out, nil
}

var errInjected = errors.New("injected failure")

// failingS3 fails every listing.
type failingS3 struct{ *fakeS3 }

func (f failingS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return nil, errInjected
}
