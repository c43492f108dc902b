package view

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/page-canvas/internal/domain"
	"github.com/spherical/page-canvas/internal/store"
)

func TestNew_Defaults(t *testing.T) {
	m := New()
	s := m.State()
	assert.False(t, s.ShowRaster)
	assert.True(t, s.ShowVector)
	assert.Equal(t, 50, s.SplitRatio)
	assert.Equal(t, 4, s.ColumnCount)
	assert.Equal(t, ModeVector, m.Mode())
	assert.False(t, s.SplitControlVisible())
}

func TestMode(t *testing.T) {
	tests := []struct {
		raster, vector bool
		want           Mode
	}{
		{false, false, ModeNone},
		{true, false, ModeRaster},
		{false, true, ModeVector},
		{true, true, ModeSplit},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			s := State{ShowRaster: tt.raster, ShowVector: tt.vector}
			assert.Equal(t, tt.want, s.Mode())
		})
	}
}

func TestSplitRatio_RestoredAfterSingleMode(t *testing.T) {
	m := New()
	m.SetShowRaster(true)
	require.True(t, m.State().SplitControlVisible())

	m.SetSplitRatio(30)
	m.SetShowRaster(false)

	s := m.State()
	assert.False(t, s.SplitControlVisible())
	p := m.Present(domain.Page{Number: 1, Vector: &domain.VectorResult{Markup: "v"}, Raster: &domain.Raster{Width: 1}})
	assert.Equal(t, ModeVector, p.Mode)
	assert.Nil(t, p.Raster, "only the remaining representation is shown")
	assert.Zero(t, p.SplitRatio)

	m.SetShowRaster(true)
	assert.Equal(t, 30, m.State().SplitRatio)
	assert.Equal(t, 30, m.Present(domain.Page{Number: 1}).SplitRatio)
}

func TestSplitRatio_Clamped(t *testing.T) {
	m := New()
	m.SetSplitRatio(140)
	assert.Equal(t, 100, m.State().SplitRatio)
	m.SetSplitRatio(-3)
	assert.Equal(t, 0, m.State().SplitRatio)
}

func TestSetColumnCount(t *testing.T) {
	m := New()
	require.NoError(t, m.SetColumnCount(6))
	assert.Equal(t, 6, m.State().ColumnCount)
	assert.Error(t, m.SetColumnCount(0))
	assert.Error(t, m.SetColumnCount(7))
	assert.Equal(t, 6, m.State().ColumnCount)
}

func TestPresent_Placeholders(t *testing.T) {
	m := NewWithState(State{ShowRaster: true, ShowVector: true})

	p := m.Present(domain.Page{Number: 3, Status: domain.PageStatusUnrendered})
	assert.Equal(t, "unrendered", p.Placeholder)

	p = m.Present(domain.Page{Number: 3, Raster: &domain.Raster{Width: 1, Height: 1, Pixels: []byte{0, 0, 0, 0}}})
	assert.Equal(t, "not converted", p.Placeholder)
}

// Any sequence of toggles, with conversions landing in between, leaves raster
// and vector content byte-for-byte intact.
func TestToggleSequences_PreserveArtifacts(t *testing.T) {
	st := store.New(nil)
	gen, err := st.BeginExtraction(domain.PageRange{Start: 1, End: 4})
	require.NoError(t, err)
	for n := 1; n <= 4; n++ {
		st.SetRaster(n, &domain.Raster{Width: 1, Height: 1, Pixels: []byte{byte(n), 1, 2, 255}}, gen)
		st.SetVector(n, &domain.VectorResult{Markup: "m", Paths: []domain.VectorPath{{D: "M0 0Z"}}}, domain.DefaultTraceParams(), gen)
	}

	m := New()
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		before := st.Pages()

		steps := rng.Intn(20)
		for i := 0; i < steps; i++ {
			switch rng.Intn(4) {
			case 0:
				m.ToggleRaster()
			case 1:
				m.ToggleVector()
			case 2:
				m.SetSplitRatio(rng.Intn(101))
			case 3:
				_ = m.PresentAll(st.Pages())
			}
		}

		after := st.Pages()
		require.Equal(t, before, after, "round %d", round)

		if round%10 == 0 {
			// A re-conversion with new params between toggle bursts.
			params := domain.TraceParams{Threshold: 60 + round, SpeckleSuppression: 2}
			for n := 1; n <= 4; n++ {
				st.SetVector(n, &domain.VectorResult{Markup: "m2", Paths: []domain.VectorPath{{D: "M1 1Z"}}}, params, gen)
			}
		}
	}

	for _, p := range st.Pages() {
		require.NotNil(t, p.Raster)
		assert.Equal(t, byte(p.Number), p.Raster.Pixels[0])
		require.NotNil(t, p.Vector)
	}
}
