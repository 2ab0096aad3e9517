package timeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/visemesync/internal/viseme"
)

func buildTestTimeline(t *testing.T, n int) *Timeline {
	t.Helper()
	raw := make([]RawEvent, n)
	syms := []string{"B", "AH", "S", "OW", "K"}
	for i := range raw {
		raw[i] = RawEvent{
			Symbol:  syms[i%len(syms)],
			StartMs: float64(i * 100),
			EndMs:   float64((i + 1) * 100),
		}
	}
	tl, err := Build(raw, viseme.DefaultMap(), DefaultOptions())
	require.NoError(t, err)
	return tl
}

func TestCursorEventAt(t *testing.T) {
	t.Run("monotonic queries visit each event", func(t *testing.T) {
		tl := buildTestTimeline(t, 20)
		c := NewCursor(tl)

		for i := 0; i < 20; i++ {
			ev := c.EventAt(float64(i*100) + 50)
			require.NotNil(t, ev, "query %d", i)
			assert.Equal(t, tl.Events[i].Symbol, ev.Symbol)
		}
	})

	t.Run("window is start-inclusive end-exclusive", func(t *testing.T) {
		tl := buildTestTimeline(t, 3)
		c := NewCursor(tl)

		ev := c.EventAt(100)
		require.NotNil(t, ev)
		assert.Equal(t, 100.0, ev.StartMs)

		ev = c.EventAt(199.999)
		require.NotNil(t, ev)
		assert.Equal(t, 100.0, ev.StartMs)
	})

	t.Run("before first and after last", func(t *testing.T) {
		raw := []RawEvent{{Symbol: "AH", StartMs: 500, EndMs: 600}}
		tl, err := Build(raw, viseme.DefaultMap(), DefaultOptions())
		require.NoError(t, err)
		c := NewCursor(tl)

		assert.Nil(t, c.EventAt(100))
		assert.Nil(t, c.EventAt(700))
	})

	t.Run("gap between events", func(t *testing.T) {
		raw := []RawEvent{
			{Symbol: "B", StartMs: 0, EndMs: 100},
			{Symbol: "AH", StartMs: 400, EndMs: 500},
		}
		tl, err := Build(raw, viseme.DefaultMap(), DefaultOptions())
		require.NoError(t, err)
		c := NewCursor(tl)

		require.NotNil(t, c.EventAt(50))
		assert.Nil(t, c.EventAt(250))
		require.NotNil(t, c.EventAt(450))
	})

	t.Run("small backward jump uses the scan path", func(t *testing.T) {
		tl := buildTestTimeline(t, 20)
		c := NewCursor(tl)

		require.NotNil(t, c.EventAt(950)) // index 9
		ev := c.EventAt(650)              // 3 back, within scan limit
		require.NotNil(t, ev)
		assert.Equal(t, 600.0, ev.StartMs)
	})

	t.Run("large backward jump re-searches", func(t *testing.T) {
		tl := buildTestTimeline(t, 50)
		c := NewCursor(tl)

		require.NotNil(t, c.EventAt(4550)) // index 45
		ev := c.EventAt(250)               // far past the scan limit
		require.NotNil(t, ev)
		assert.Equal(t, 200.0, ev.StartMs)

		// The cursor keeps working forward after a re-search.
		ev = c.EventAt(350)
		require.NotNil(t, ev)
		assert.Equal(t, 300.0, ev.StartMs)
	})

	t.Run("reset rewinds to the start", func(t *testing.T) {
		tl := buildTestTimeline(t, 10)
		c := NewCursor(tl)

		require.NotNil(t, c.EventAt(850))
		c.Reset()
		ev := c.EventAt(50)
		require.NotNil(t, ev)
		assert.Equal(t, 0.0, ev.StartMs)
	})
}

func TestCursorEventAfter(t *testing.T) {
	raw := []RawEvent{
		{Symbol: "B", StartMs: 100, EndMs: 200},
		{Symbol: "AH", StartMs: 300, EndMs: 400},
	}
	tl, err := Build(raw, viseme.DefaultMap(), DefaultOptions())
	require.NoError(t, err)
	c := NewCursor(tl)

	t.Run("within lookahead window", func(t *testing.T) {
		next := c.EventAfter(50, 60)
		require.NotNil(t, next)
		assert.Equal(t, 100.0, next.StartMs)
	})

	t.Run("outside lookahead window", func(t *testing.T) {
		assert.Nil(t, c.EventAfter(0, 60))
	})

	t.Run("no upcoming event", func(t *testing.T) {
		assert.Nil(t, c.EventAfter(500, 60))
	})

	t.Run("does not move the cursor", func(t *testing.T) {
		cur := NewCursor(tl)
		require.NotNil(t, cur.EventAt(150))
		_ = cur.EventAfter(250, 60)
		ev := cur.EventAt(150)
		require.NotNil(t, ev)
		assert.Equal(t, 100.0, ev.StartMs)
	})
}

func TestTimelineString(t *testing.T) {
	tl := buildTestTimeline(t, 3)
	assert.Equal(t, fmt.Sprintf("timeline[%d events, 0..300ms]", 3), tl.String())
}
