package store

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vango-dev/hashsync/internal/errors"
	"github.com/vango-dev/hashsync/pkg/mapping"
)

// fakeS3 is an in-memory S3API. List pages hold at most two keys so the
// paginator is exercised.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut != nil {
		return nil, f.failPut
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		for start < len(keys) && keys[start] <= tok {
			start++
		}
	}
	end := start + 2
	if end > len(keys) {
		end = len(keys)
	}

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[end-1])
	}
	return out, nil
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
		"s3":     NewS3Store(newFakeS3(), "bucket", "snapshots/"),
	}
}

func snapshot(id, hash string, entries ...mapping.Entry) Snapshot {
	return Snapshot{
		ID:        id,
		Hash:      hash,
		Data:      mapping.New(entries...),
		UpdatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			in := snapshot("abc-1", "#page=home&n=2", mapping.KV("page", "home"), mapping.KV("n", 2), mapping.KV("debug", true))
			if err := st.Save(ctx, in); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err := st.Load(ctx, "abc-1")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got.ID != in.ID || got.Hash != in.Hash || !got.UpdatedAt.Equal(in.UpdatedAt) {
				t.Errorf("Load = %+v, want %+v", got, in)
			}
			if !mapping.Equal(got.Data, in.Data) {
				t.Errorf("Data = %v, want %v", got.Data, in.Data)
			}
			if keys := got.Data.Keys(); !reflect.DeepEqual(keys, []string{"page", "n", "debug"}) {
				t.Errorf("key order = %v", keys)
			}

			if err := st.Delete(ctx, "abc-1"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := st.Load(ctx, "abc-1"); !IsNotFound(err) {
				t.Errorf("Load after Delete: err = %v, want H300", err)
			}
			if err := st.Delete(ctx, "abc-1"); err != nil {
				t.Errorf("Delete of a missing snapshot: %v", err)
			}
		})
	}
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"c", "a", "e", "b", "d"} {
				if err := st.Save(ctx, snapshot(id, "")); err != nil {
					t.Fatalf("Save(%s): %v", id, err)
				}
			}
			ids, err := st.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if want := []string{"a", "b", "c", "d", "e"}; !reflect.DeepEqual(ids, want) {
				t.Errorf("List = %v, want %v", ids, want)
			}
		})
	}
}

func TestStoreRejectsBadIDs(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"", "../escape", "a/b", "with space"} {
				err := st.Save(ctx, snapshot(id, ""))
				if !stderrors.Is(err, errors.ErrConfigValidation) {
					t.Errorf("Save(%q) err = %v, want H201", id, err)
				}
			}
		})
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	in := snapshot("x", "", mapping.KV("a", "1"))
	if err := st.Save(ctx, in); err != nil {
		t.Fatal(err)
	}
	in.Data.Set("a", mapping.String("changed"))

	got, _ := st.Load(ctx, "x")
	if v, _ := got.Data.Get("a"); v.String() != "1" {
		t.Errorf("stored data aliased the caller's mapping: %s", v.String())
	}
}

func TestS3ErrorsAreWrapped(t *testing.T) {
	fake := newFakeS3()
	fake.failPut = stderrors.New("connection reset")
	st := NewS3Store(fake, "bucket", "")

	err := st.Save(context.Background(), snapshot("x", ""))
	if !stderrors.Is(err, errors.ErrStoreIO) {
		t.Errorf("err = %v, want H301", err)
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("cause lost: %v", err)
	}
}

type opRecorder struct {
	ops []string
}

func (r *opRecorder) StoreOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = errors.Code(err)
	}
	r.ops = append(r.ops, op+":"+result)
}

func TestObserved(t *testing.T) {
	ctx := context.Background()
	rec := &opRecorder{}
	st := Observed(NewMemoryStore(), rec)

	_ = st.Save(ctx, snapshot("a", ""))
	_, _ = st.Load(ctx, "a")
	_, _ = st.Load(ctx, "missing")
	_ = st.Delete(ctx, "a")
	_, _ = st.List(ctx)

	want := []string{"save:ok", "load:ok", "load:H300", "delete:ok", "list:ok"}
	if !reflect.DeepEqual(rec.ops, want) {
		t.Errorf("ops = %v, want %v", rec.ops, want)
	}

	if Observed(NewMemoryStore(), nil) == nil {
		t.Error("Observed with a nil observer should return the store")
	}
}
