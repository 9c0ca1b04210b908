package registry_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/CAD97/tracing/assert"
	"github.com/CAD97/tracing/registry"
	"github.com/CAD97/tracing/slotpool"
)

// Extensions should generally be named wrapper types rather than bare ints or
// strings, so unrelated layers attaching to the same span cannot clobber each
// other by accident.
type Timestamp struct {
	Nanos int64
}

type SampleCount struct {
	N int
}

type Labels struct {
	Values []string
}

func insertOne[T any](t *testing.T, span *registry.Span, value T) {
	t.Helper()
	ext := span.ExtensionsMut()
	defer ext.Release()
	assert.NilError(t, registry.Insert(ext, value))
}

func readOne[T any](span *registry.Span) (T, bool) {
	ext := span.Extensions()
	defer ext.Release()
	if p, ok := registry.Get[T](ext); ok {
		return *p, true
	}
	var zero T
	return zero, false
}

func TestInsertThenGet(t *testing.T) {
	r := registry.New()
	span := r.NewSpan()

	insertOne(t, span, Timestamp{Nanos: 123})

	got, ok := readOne[Timestamp](span)
	assert.True(t, ok)
	assert.Equal(t, int64(123), got.Nanos)
}

func TestDoubleInsertFailsAndKeepsValue(t *testing.T) {
	r := registry.New()
	span := r.NewSpan()

	ext := span.ExtensionsMut()
	assert.NilError(t, registry.Insert(ext, Timestamp{Nanos: 1}))
	err := registry.Insert(ext, Timestamp{Nanos: 2})
	assert.ErrorIs(t, err, registry.ErrExtensionAlreadyPresent)
	assert.ErrorContains(t, err, "registry_test.Timestamp", "the error must name the offending type")
	ext.Release()

	got, ok := readOne[Timestamp](span)
	assert.True(t, ok)
	assert.Equal(t, int64(1), got.Nanos, "failed insert must not clobber the existing value")
}

func TestGetMisses(t *testing.T) {
	r := registry.New()
	a := r.NewSpan()
	b := r.NewSpan()

	insertOne(t, a, Timestamp{Nanos: 9})

	_, ok := readOne[SampleCount](a)
	assert.False(t, ok, "never-inserted type should miss")
	_, ok = readOne[Timestamp](b)
	assert.False(t, ok, "an attachment on one span is invisible to another")
}

func TestRemove(t *testing.T) {
	r := registry.New()
	span := r.NewSpan()
	insertOne(t, span, SampleCount{N: 3})

	ext := span.ExtensionsMut()
	assert.True(t, registry.Remove[SampleCount](ext))

	_, ok := registry.GetMut[SampleCount](ext)
	assert.False(t, ok)
	assert.False(t, registry.Remove[SampleCount](ext), "second remove reports absence")

	// Re-inserting after a remove behaves as if the type was never attached.
	assert.NilError(t, registry.Insert(ext, SampleCount{N: 4}))
	ext.Release()

	got, ok := readOne[SampleCount](span)
	assert.True(t, ok)
	assert.Equal(t, 4, got.N)
}

func TestReplace(t *testing.T) {
	r := registry.New()
	span := r.NewSpan()

	ext := span.ExtensionsMut()
	replaced, err := registry.Replace(ext, Timestamp{Nanos: 10})
	assert.NilError(t, err)
	assert.False(t, replaced, "replace on an absent type behaves as insert")

	replaced, err = registry.Replace(ext, Timestamp{Nanos: 20})
	assert.NilError(t, err)
	assert.True(t, replaced)
	ext.Release()

	got, ok := readOne[Timestamp](span)
	assert.True(t, ok)
	assert.Equal(t, int64(20), got.Nanos)
}

func TestGetMutMutatesInPlace(t *testing.T) {
	r := registry.New()
	span := r.NewSpan()
	insertOne(t, span, Labels{Values: []string{"a"}})

	ext := span.ExtensionsMut()
	labels, ok := registry.GetMut[Labels](ext)
	assert.True(t, ok)
	labels.Values = append(labels.Values, "b")
	ext.Release()

	got, ok := readOne[Labels](span)
	assert.True(t, ok)
	assert.DeepEqual(t, []string{"a", "b"}, got.Values)
}

// A pointer from GetMut must keep pointing at the live cell while another
// span's first insert of the same type grows the shared pool.
func TestGetMutSurvivesConcurrentPoolGrowth(t *testing.T) {
	r := registry.New()
	a := r.NewSpan()
	b := r.NewSpan()
	insertOne(t, a, Timestamp{Nanos: 1})

	ext := a.ExtensionsMut()
	held, ok := registry.GetMut[Timestamp](ext)
	assert.True(t, ok)

	insertOne(t, b, Timestamp{Nanos: 2})

	held.Nanos = 999
	ext.Release()

	got, ok := readOne[Timestamp](a)
	assert.True(t, ok)
	assert.Equal(t, int64(999), got.Nanos, "in-place mutation must survive pool growth")
	gotB, ok := readOne[Timestamp](b)
	assert.True(t, ok)
	assert.Equal(t, int64(2), gotB.Nanos)
}

// Two spans, one type: values stay independent and one span's removal leaves
// the other untouched.
func TestTwoSpansSameType(t *testing.T) {
	r := registry.New()
	a := r.NewSpan()
	b := r.NewSpan()

	insertOne(t, a, Timestamp{Nanos: 100})
	insertOne(t, b, Timestamp{Nanos: 200})

	gotA, ok := readOne[Timestamp](a)
	assert.True(t, ok)
	assert.Equal(t, int64(100), gotA.Nanos)
	gotB, ok := readOne[Timestamp](b)
	assert.True(t, ok)
	assert.Equal(t, int64(200), gotB.Nanos)

	ext := a.ExtensionsMut()
	assert.True(t, registry.Remove[Timestamp](ext))
	ext.Release()

	_, ok = readOne[Timestamp](a)
	assert.False(t, ok)
	gotB, ok = readOne[Timestamp](b)
	assert.True(t, ok)
	assert.Equal(t, int64(200), gotB.Nanos, "removal on span A must not affect span B")
}

func TestConcurrentDistinctSpansAndTypes(t *testing.T) {
	r := registry.New()

	const n = 32
	spans := make([]*registry.Span, n)
	for i := range spans {
		spans[i] = r.NewSpan()
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ext := spans[i].ExtensionsMut()
			defer ext.Release()
			if err := registry.Insert(ext, Timestamp{Nanos: int64(i)}); err != nil {
				errs[i] = err
				return
			}
			errs[i] = registry.Insert(ext, SampleCount{N: i})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.NilError(t, errs[i])
		ts, ok := readOne[Timestamp](spans[i])
		assert.True(t, ok)
		assert.Equal(t, int64(i), ts.Nanos)
		sc, ok := readOne[SampleCount](spans[i])
		assert.True(t, ok)
		assert.Equal(t, i, sc.N)
	}
}

// Racing first-time inserts of the same type must converge on one shared
// pool, with neither racer's value lost.
func TestConcurrentFirstInsertConverges(t *testing.T) {
	type fresh struct {
		ID int
	}

	r := registry.New()

	const n = 32
	spans := make([]*registry.Span, n)
	for i := range spans {
		spans[i] = r.NewSpan()
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ext := spans[i].ExtensionsMut()
			defer ext.Release()
			errs[i] = registry.Insert(ext, fresh{ID: i})
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.NilError(t, errs[i])
		got, ok := readOne[fresh](spans[i])
		assert.True(t, ok)
		assert.Equal(t, i, got.ID)
	}

	info := r.Info()
	pools := 0
	for _, p := range info.Pools {
		if p.Len == n {
			pools++
		}
	}
	assert.Equal(t, 1, pools, "all racers must land in a single surviving pool")
}

// Attach/detach churn stays within the pool's first allocation: insert N,
// remove N, reinsert N causes no growth beyond the first N cells.
func TestPoolCapacityStableUnderChurn(t *testing.T) {
	type churn struct {
		V int
	}

	r := registry.New()

	const n = 16
	spans := make([]*registry.Span, n)
	for i := range spans {
		spans[i] = r.NewSpan()
		insertOne(t, spans[i], churn{V: i})
	}
	assert.Equal(t, n, poolCapacity(t, r, "churn"))

	for _, span := range spans {
		ext := span.ExtensionsMut()
		assert.True(t, registry.Remove[churn](ext))
		ext.Release()
	}
	for i, span := range spans {
		insertOne(t, span, churn{V: i})
	}
	assert.Equal(t, n, poolCapacity(t, r, "churn"), "reinserts must reuse freed cells")
}

func poolCapacity(t *testing.T, r *registry.Registry, typeSuffix string) int {
	t.Helper()
	for _, p := range r.Info().Pools {
		if len(p.Type) >= len(typeSuffix) && p.Type[len(p.Type)-len(typeSuffix):] == typeSuffix {
			return p.Capacity
		}
	}
	t.Fatalf("no pool with type suffix %q", typeSuffix)
	return 0
}

func TestPoolExhaustionPropagates(t *testing.T) {
	r := registry.New(registry.WithPoolCapacity(1))
	a := r.NewSpan()
	b := r.NewSpan()

	insertOne(t, a, Timestamp{Nanos: 1})

	ext := b.ExtensionsMut()
	err := registry.Insert(ext, Timestamp{Nanos: 2})
	ext.Release()
	assert.ErrorIs(t, err, slotpool.ErrExhausted)

	_, ok := readOne[Timestamp](b)
	assert.False(t, ok, "a failed insert must not leave a key behind")
}

func TestManyReadersDoNotBlock(t *testing.T) {
	r := registry.New()
	span := r.NewSpan()
	insertOne(t, span, Timestamp{Nanos: 5})

	var wg sync.WaitGroup
	oks := make([]bool, 16)
	for i := range oks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, oks[i] = readOne[Timestamp](span)
		}(i)
	}
	wg.Wait()
	for _, ok := range oks {
		assert.True(t, ok)
	}
}

func TestUseAfterReleasePanics(t *testing.T) {
	r := registry.New()
	span := r.NewSpan()
	insertOne(t, span, Timestamp{Nanos: 1})

	ext := span.Extensions()
	ext.Release()
	assert.Panics(t, func() { _, _ = registry.Get[Timestamp](ext) })

	mut := span.ExtensionsMut()
	mut.Release()
	assert.Panics(t, func() { _, _ = registry.GetMut[Timestamp](mut) })
	assert.Panics(t, func() { _ = registry.Insert(mut, SampleCount{}) })
	assert.Panics(t, func() { _ = registry.Remove[Timestamp](mut) })
	assert.Panics(t, func() { _, _ = registry.Replace(mut, Timestamp{}) })
}

func TestViewDiagnostics(t *testing.T) {
	r := registry.New()
	span := r.NewSpan()
	insertOne(t, span, Timestamp{})
	insertOne(t, span, SampleCount{})

	ext := span.Extensions()
	assert.Equal(t, 2, ext.Len())
	assert.Equal(t, fmt.Sprintf("Extensions{span: %d, types: 2}", span.ID()), ext.String())

	var buf strings.Builder
	logger := zerolog.New(&buf)
	logger.Info().Object("extensions", ext).Send()
	assert.Assert(t, strings.Contains(buf.String(), `"extension_types":2`))
	ext.Release()

	mut := span.ExtensionsMut()
	assert.Equal(t, 2, mut.Len())
	mut.Release()
}
