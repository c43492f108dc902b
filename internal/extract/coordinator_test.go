package extract

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/page-canvas/internal/domain"
	"github.com/spherical/page-canvas/internal/store"
)

// fakeRasterizer returns a canned set of pages, optionally skipping some and
// optionally failing after returning partial results.
type fakeRasterizer struct {
	skip  map[int]bool
	err   error
	calls int
	fill  byte
	// during runs inside Rasterize, before results are returned.
	during func()
}

func (f *fakeRasterizer) Rasterize(_ context.Context, _ []byte, start, end int) ([]domain.RasterPage, error) {
	f.calls++
	if f.during != nil {
		f.during()
	}
	var out []domain.RasterPage
	// Reverse order on purpose.
	for n := end; n >= start; n-- {
		if f.skip[n] {
			continue
		}
		out = append(out, domain.RasterPage{
			PageNumber: n,
			Raster:     &domain.Raster{Width: 1, Height: 1, Pixels: []byte{f.fill, f.fill, f.fill, 255}},
		})
	}
	return out, f.err
}

func TestExtract_AllPagesOutOfOrder(t *testing.T) {
	st := store.New(nil)
	c := NewCoordinator(&fakeRasterizer{}, st, nil)

	report, err := c.Extract(context.Background(), []byte("%PDF"), 18, 37, nil)
	require.NoError(t, err)

	assert.True(t, report.Complete())
	assert.Len(t, report.Rendered, 20)
	assert.Equal(t, 18, report.Rendered[0])
	assert.NotEmpty(t, report.BatchID)

	pages := st.Pages()
	require.Len(t, pages, 20)
	for _, p := range pages {
		assert.True(t, p.Number >= 18 && p.Number <= 37)
		assert.Equal(t, domain.PageStatusRendered, p.Status)
		assert.NotNil(t, p.Raster)
	}
}

func TestExtract_GapsAreUnrenderedNotFatal(t *testing.T) {
	st := store.New(nil)
	c := NewCoordinator(&fakeRasterizer{skip: map[int]bool{20: true, 25: true}}, st, nil)
	events := make(chan domain.StreamEvent, 64)

	report, err := c.Extract(context.Background(), nil, 18, 37, events)
	require.NoError(t, err)

	assert.False(t, report.Failed)
	assert.Equal(t, []int{20, 25}, report.Missing)
	assert.Len(t, report.Rendered, 18)
	for _, e := range report.MissingErrors() {
		assert.True(t, errors.Is(e, domain.ErrRasterMissing))
	}

	p, ok := st.Page(20)
	require.True(t, ok)
	assert.Equal(t, domain.PageStatusUnrendered, p.Status)
	assert.Nil(t, p.Raster)

	close(events)
	var missing int
	for e := range events {
		if e.Type == domain.EventPageMissing {
			missing++
		}
	}
	assert.Equal(t, 2, missing)
}

func TestExtract_InvalidRangeSkipsCapability(t *testing.T) {
	r := &fakeRasterizer{}
	c := NewCoordinator(r, store.New(nil), nil)

	_, err := c.Extract(context.Background(), nil, 37, 18, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRange))
	assert.Zero(t, r.calls)
}

func TestExtract_PageLimit(t *testing.T) {
	r := &fakeRasterizer{}
	c := NewCoordinator(r, store.New(nil), nil)
	c.SetMaxPages(10)

	_, err := c.Extract(context.Background(), nil, 1, 11, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRange))
	assert.Zero(t, r.calls)

	report, err := c.Extract(context.Background(), nil, 1, 10, nil)
	require.NoError(t, err)
	assert.Len(t, report.Rendered, 10)
}

func TestExtract_RangeEndingAtMaxIntTerminates(t *testing.T) {
	st := store.New(nil)
	c := NewCoordinator(&fakeRasterizer{skip: map[int]bool{math.MaxInt: true}}, st, nil)

	done := make(chan *Report, 1)
	go func() {
		report, _ := c.Extract(context.Background(), nil, math.MaxInt-1, math.MaxInt, nil)
		done <- report
	}()

	select {
	case report := <-done:
		require.NotNil(t, report)
		assert.Equal(t, []int{math.MaxInt - 1}, report.Rendered)
		assert.Equal(t, []int{math.MaxInt}, report.Missing)
	case <-time.After(5 * time.Second):
		t.Fatal("extraction did not finish")
	}
}

func TestExtract_SupersededBatchReportsNothingMissing(t *testing.T) {
	st := store.New(nil)
	r := &fakeRasterizer{}
	r.during = func() {
		r.during = nil
		_, err := st.BeginExtraction(domain.PageRange{Start: 1, End: 3})
		require.NoError(t, err)
	}
	c := NewCoordinator(r, st, nil)

	events := make(chan domain.StreamEvent, 16)
	report, err := c.Extract(context.Background(), nil, 1, 3, events)
	require.NoError(t, err)
	close(events)

	assert.True(t, report.Superseded)
	assert.False(t, report.Complete())
	assert.Empty(t, report.Missing)
	assert.Empty(t, report.Rendered)
	for ev := range events {
		assert.NotEqual(t, domain.EventPageMissing, ev.Type)
		assert.NotEqual(t, domain.EventPageComplete, ev.Type)
	}
	for _, p := range st.Pages() {
		assert.Equal(t, domain.PageStatusPending, p.Status, "the newer generation is untouched")
		assert.Greater(t, p.ExtractionGeneration, report.Generation)
	}
}

func TestExtract_CapabilityFailureKeepsPartialData(t *testing.T) {
	st := store.New(nil)
	r := &fakeRasterizer{skip: map[int]bool{3: true, 4: true}, err: errors.New("corrupt xref")}
	c := NewCoordinator(r, st, nil)

	report, err := c.Extract(context.Background(), nil, 1, 4, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExtractionFailed))
	require.NotNil(t, report)
	assert.True(t, report.Failed)
	assert.False(t, report.Complete())
	assert.Equal(t, []int{1, 2}, report.Rendered)

	p, _ := st.Page(1)
	assert.NotNil(t, p.Raster, "pages written before the failure keep their data")
}

func TestExtract_RepeatIsNewGeneration(t *testing.T) {
	st := store.New(nil)
	r := &fakeRasterizer{}
	c := NewCoordinator(r, st, nil)

	first, err := c.Extract(context.Background(), nil, 1, 3, nil)
	require.NoError(t, err)
	firstPage, _ := st.Page(1)

	second, err := c.Extract(context.Background(), nil, 1, 3, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, r.calls, "identical re-extraction is not a no-op")
	assert.Greater(t, second.Generation, first.Generation)
	assert.NotEqual(t, first.BatchID, second.BatchID)

	p, _ := st.Page(1)
	assert.Equal(t, second.Generation, p.ExtractionGeneration)
	assert.NotEqual(t, firstPage.ExtractionGeneration, p.ExtractionGeneration)
}

func TestExtract_RecoversFromEmptyFirstPass(t *testing.T) {
	st := store.New(nil)
	r := &fakeRasterizer{skip: map[int]bool{1: true, 2: true}}
	c := NewCoordinator(r, st, nil)

	first, err := c.Extract(context.Background(), nil, 1, 2, nil)
	require.NoError(t, err)
	assert.Len(t, first.Missing, 2)

	r.skip = nil
	second, err := c.Extract(context.Background(), nil, 1, 2, nil)
	require.NoError(t, err)
	assert.True(t, second.Complete())
}
