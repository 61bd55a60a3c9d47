package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", FormatBytes(int64(0)))
	assert.Equal(t, "1.0 KiB", FormatBytes(int64(1024)))
	assert.Equal(t, "50 MiB", FormatBytes(uint64(50*1024*1024)))
	assert.Equal(t, "-1.0 KiB", FormatBytes(int64(-1024)))
}

func TestFormatProgress(t *testing.T) {
	assert.Equal(t, "0/0+", FormatProgress(0, 0, false))
	assert.Equal(t, "5/10 (50.0%)", FormatProgress(5, 10, true))
	assert.Equal(t, "1,200/4,000+ (30.0%)", FormatProgress(1200, 4000, false))
}
