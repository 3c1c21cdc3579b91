package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sasagram/streamlog/internal/domain"
)

func TestFormatViewCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "950", domain.FormatViewCount(950))
	assert.Equal(t, "2.5M", domain.FormatViewCount(2_500_000))
}

func TestVodThumbnailAt(t *testing.T) {
	t.Parallel()

	v := domain.Vod{ThumbnailURL: "https://static-cdn.jtvnw.net/thumb-%{width}x%{height}.jpg"}
	assert.Equal(t, "https://static-cdn.jtvnw.net/thumb-320x180.jpg", v.ThumbnailAt(320, 180))
}
