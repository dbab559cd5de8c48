package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHumanReadableSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{1000, "1.0 kB"},
		{1500000, "1.5 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, humanReadableSize(tt.bytes))
		})
	}
}

func TestSecondsToDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Second, secondsToDuration(1.0))
	assert.Equal(t, 1500*time.Millisecond, secondsToDuration(1.5))
	assert.Equal(t, 500*time.Millisecond, secondsToDuration(0.5))
}
