package utils

import (
	"strconv"
	"strings"
	"testing"

	"github.com/amaumene/ytarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalogOf(formats ...models.MediaFormat) *models.FormatCatalogResult {
	c := models.EmptyCatalog()
	c.Formats = formats
	return c
}

func TestBuildFormatExpressionHeight(t *testing.T) {
	for _, h := range []int{144, 360, 720, 1080, 2160} {
		expr := BuildFormatExpression(models.HeightCeiling(h))

		exact := strings.Index(expr, "[height="+strconv.Itoa(h)+"]")
		atMost := strings.Index(expr, "[height<="+strconv.Itoa(h)+"]")
		require.GreaterOrEqual(t, exact, 0, expr)
		require.Greater(t, atMost, exact, expr)

		clauses := strings.Split(expr, "/")
		last := clauses[len(clauses)-1]
		assert.NotContains(t, last, "height", "final clause must be unconstrained")
		assert.Equal(t, "best", last)
	}
}

func TestBuildFormatExpressionBest(t *testing.T) {
	expr := BuildFormatExpression(models.BestQuality())
	assert.Equal(t, "bestvideo+bestaudio/best", expr)
	assert.NotContains(t, expr, "height")
}

func TestBestFallbackFormatID(t *testing.T) {
	both := catalogOf(
		models.MediaFormat{ID: "18", HeightPx: 360},
		models.MediaFormat{ID: "22", HeightPx: 720},
	)
	only360 := catalogOf(models.MediaFormat{ID: "18", HeightPx: 360})
	none := catalogOf(models.MediaFormat{ID: "137", HeightPx: 1080, IsVideoOnly: true})

	assert.Equal(t, "22", BestFallbackFormatID(both, models.HeightCeiling(720)))
	assert.Equal(t, "22", BestFallbackFormatID(both, models.BestQuality()))
	assert.Equal(t, "18", BestFallbackFormatID(both, models.HeightCeiling(480)))
	assert.Equal(t, "18", BestFallbackFormatID(only360, models.HeightCeiling(720)))
	assert.Equal(t, "18/22/best", BestFallbackFormatID(none, models.HeightCeiling(720)))
}

func TestBestAudioOnly(t *testing.T) {
	c := catalogOf(
		models.MediaFormat{ID: "251", Container: "webm", IsAudioOnly: true},
		models.MediaFormat{ID: "140", Container: "m4a", IsAudioOnly: true},
		models.MediaFormat{ID: "18", HeightPx: 360},
	)

	f, ok := BestAudioOnly(c)
	require.True(t, ok)
	assert.Equal(t, "140", f.ID)

	_, ok = BestAudioOnly(catalogOf(models.MediaFormat{ID: "18", HeightPx: 360}))
	assert.False(t, ok)
}

func TestLowestQuality(t *testing.T) {
	c := catalogOf(
		models.MediaFormat{ID: "140", IsAudioOnly: true},
		models.MediaFormat{ID: "22", HeightPx: 720},
		models.MediaFormat{ID: "160", HeightPx: 144, IsVideoOnly: true},
	)

	f, ok := LowestQuality(c)
	require.True(t, ok)
	assert.Equal(t, "160", f.ID)
}

func TestBestAtOrBelow(t *testing.T) {
	c := catalogOf(
		models.MediaFormat{ID: "137", HeightPx: 1080, IsVideoOnly: true},
		models.MediaFormat{ID: "136", HeightPx: 720, IsVideoOnly: true},
		models.MediaFormat{ID: "22", HeightPx: 720},
		models.MediaFormat{ID: "18", HeightPx: 360},
		models.MediaFormat{ID: "140", IsAudioOnly: true},
	)

	f, ok := BestAtOrBelow(c, models.HeightCeiling(1080), false)
	require.True(t, ok)
	assert.Equal(t, "137", f.ID)

	f, ok = BestAtOrBelow(c, models.HeightCeiling(1080), true)
	require.True(t, ok)
	assert.Equal(t, "22", f.ID)

	f, ok = BestAtOrBelow(c, models.HeightCeiling(480), true)
	require.True(t, ok)
	assert.Equal(t, "18", f.ID)

	_, ok = BestAtOrBelow(c, models.HeightCeiling(240), false)
	assert.False(t, ok)
}
