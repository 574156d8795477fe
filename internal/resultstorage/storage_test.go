package resultstorage

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xperious/result-storage/internal/config"
	"xperious/result-storage/internal/host"
	"xperious/result-storage/internal/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type recordedTiming struct {
	name string
	d    time.Duration
}

type recordingMetrics struct {
	mu      sync.Mutex
	timings []recordedTiming
}

func (m *recordingMetrics) Timing(name string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timings = append(m.timings, recordedTiming{name, d})
}

func (m *recordingMetrics) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.timings))
	for i, tm := range m.timings {
		out[i] = tm.name
	}
	return out
}

// failingBucket fails every call with err.
type failingBucket struct{ err error }

func (f failingBucket) Name() string { return "failing" }

func (f failingBucket) Upload(context.Context, string, []byte, string) error { return f.err }

func (f failingBucket) Attrs(context.Context, string) (*storage.ObjectAttrs, error) {
	return nil, f.err
}

func (f failingBucket) Download(context.Context, string) ([]byte, error) { return nil, f.err }

type fixture struct {
	mem     *storage.Memory
	metrics *recordingMetrics
	logs    *bytes.Buffer
	now     time.Time
	store   *Storage
}

func newFixture(t *testing.T, expiration int) *fixture {
	t.Helper()

	f := &fixture{
		mem:     storage.NewMemory("results"),
		metrics: &recordingMetrics{},
		logs:    &bytes.Buffer{},
		now:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.mem.SetClock(func() time.Time { return f.now })

	hctx := &host.Context{
		Config: &config.Config{ResultStorage: config.ResultStorageConfig{
			ExpirationSeconds: expiration,
			MetricPrefix:      "gcs",
		}},
		Metrics: f.metrics,
		Logger:  zerolog.New(f.logs).Level(zerolog.DebugLevel),
	}
	handle := storage.NewHandle(func(context.Context) (storage.Bucket, error) { return f.mem, nil })
	f.store = New(hctx, handle, WithClock(func() time.Time { return f.now }))
	return f
}

func TestPutStoresUnderNormalizedKeyWithSniffedType(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	path := "http://example.com/a/b.png"

	require.NoError(t, f.store.Put(ctx, path, pngHeader))

	key := NormalizePath(path)
	attrs, err := f.mem.Attrs(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "image/png", attrs.ContentType)
	assert.Equal(t, []string{"gcs.put." + key}, f.metrics.names())
}

func TestPutDefaultsContentTypeWhenUnknown(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	require.NoError(t, f.store.Put(ctx, "x/unknown", []byte{0x07, 0x00, 0x13, 0x37, 0x00, 0xff}))

	attrs, err := f.mem.Attrs(ctx, NormalizePath("x/unknown"))
	require.NoError(t, err)
	assert.Equal(t, DefaultContentType, attrs.ContentType)
	assert.Contains(t, f.logs.String(), "couldn't determine mimetype")
	assert.Contains(t, f.logs.String(), `"level":"warn"`)
}

func TestPutEmptyPayloadUsesDefaultSilently(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	require.NoError(t, f.store.Put(ctx, "x/empty", nil))

	attrs, err := f.mem.Attrs(ctx, NormalizePath("x/empty"))
	require.NoError(t, err)
	assert.Equal(t, DefaultContentType, attrs.ContentType)
	assert.NotContains(t, f.logs.String(), "couldn't determine mimetype")
}

func TestGetReturnsStoredPayload(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	require.NoError(t, f.store.Put(ctx, "example.com/img.png", pngHeader))

	data, err := f.store.Get(ctx, "http://example.com/img.png")
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	key := NormalizePath("example.com/img.png")
	assert.Equal(t, []string{"gcs.put." + key, "gcs.fetch." + key}, f.metrics.names())
}

func TestGetMissingReturnsNil(t *testing.T) {
	f := newFixture(t, 0)

	data, err := f.store.Get(context.Background(), "nothing/here.jpg")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Contains(t, f.logs.String(), "object not found or expired")
	assert.Len(t, f.metrics.names(), 1)
}

func TestZeroWindowNeverExpires(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	require.NoError(t, f.store.Put(ctx, "old/img.png", pngHeader))

	f.now = f.now.Add(10 * 365 * 24 * time.Hour)

	ok, err := f.store.Exists(ctx, "old/img.png")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := f.store.Get(ctx, "old/img.png")
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestWindowBoundaries(t *testing.T) {
	const window = 120
	f := newFixture(t, window)
	ctx := context.Background()
	require.NoError(t, f.store.Put(ctx, "a/stale.png", pngHeader))
	require.NoError(t, f.store.Put(ctx, "a/fresh.png", pngHeader))

	require.True(t, f.mem.Touch(NormalizePath("a/stale.png"), f.now.Add(-(window+1)*time.Second)))
	require.True(t, f.mem.Touch(NormalizePath("a/fresh.png"), f.now.Add(-(window-1)*time.Second)))

	ok, err := f.store.Exists(ctx, "a/stale.png")
	require.NoError(t, err)
	assert.False(t, ok)
	data, err := f.store.Get(ctx, "a/stale.png")
	require.NoError(t, err)
	assert.Nil(t, data)

	ok, err = f.store.Exists(ctx, "a/fresh.png")
	require.NoError(t, err)
	assert.True(t, ok)
	data, err = f.store.Get(ctx, "a/fresh.png")
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestExistsMissing(t *testing.T) {
	f := newFixture(t, 0)

	ok, err := f.store.Exists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveIsUnsupported(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	require.NoError(t, f.store.Put(ctx, "keep/me.png", pngHeader))

	for _, p := range []string{"keep/me.png", "", "http://x/y"} {
		err := f.store.Remove(ctx, p)
		assert.ErrorIs(t, err, errors.ErrUnsupported, p)
	}
	assert.Equal(t, 1, f.mem.Len())
}

func TestSideDataIsNotPersisted(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	require.NoError(t, f.store.PutCrypto(ctx, "a/b.jpg"))
	require.NoError(t, f.store.PutDetectorData(ctx, "a/b.jpg", []byte(`[{"x":1}]`)))
	assert.Zero(t, f.mem.Len())

	crypto, err := f.store.GetCrypto(ctx, "a/b.jpg")
	require.NoError(t, err)
	assert.Nil(t, crypto)

	detector, err := f.store.GetDetectorData(ctx, "a/b.jpg")
	require.NoError(t, err)
	assert.Nil(t, detector)
}

func TestStoreErrorsPropagateUnchanged(t *testing.T) {
	boom := errors.New("503 backend unavailable")
	handle := storage.NewHandle(func(context.Context) (storage.Bucket, error) { return failingBucket{boom}, nil })
	s := New(&host.Context{Logger: zerolog.Nop()}, handle)
	ctx := context.Background()

	assert.Same(t, boom, s.Put(ctx, "a/b.png", pngHeader))

	_, err := s.Get(ctx, "a/b.png")
	assert.Same(t, boom, err)

	_, err = s.Exists(ctx, "a/b.png")
	assert.Same(t, boom, err)
}

func TestBucketOpenErrorPropagates(t *testing.T) {
	boom := errors.New("bucket does not exist")
	handle := storage.NewHandle(func(context.Context) (storage.Bucket, error) { return nil, boom })
	s := New(&host.Context{Logger: zerolog.Nop()}, handle)

	_, err := s.Get(context.Background(), "a/b.png")
	assert.Same(t, boom, err)
}

func TestFactorySharesBucketAcrossRequests(t *testing.T) {
	opens := 0
	mem := storage.NewMemory("shared")
	handle := storage.NewHandle(func(context.Context) (storage.Bucket, error) {
		opens++
		return mem, nil
	})
	factory := NewFactory(handle)
	ctx := context.Background()

	first := factory(&host.Context{Logger: zerolog.Nop()})
	second := factory(&host.Context{Logger: zerolog.Nop()})

	require.NoError(t, first.Put(ctx, "a/b.png", pngHeader))
	data, err := second.Get(ctx, "a/b.png")
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
	assert.Equal(t, 1, opens)
}

func TestContentTypeMatchesPutPolicy(t *testing.T) {
	assert.Equal(t, "image/png", ContentType(pngHeader))
	assert.Equal(t, DefaultContentType, ContentType(nil))
	assert.Equal(t, DefaultContentType, ContentType([]byte{0x07, 0x00, 0x13, 0x37, 0x00, 0xff}))
}
