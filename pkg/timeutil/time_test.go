package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "300", want: 5 * time.Minute},
		{in: "0", want: 0},
		{in: "5m", want: 5 * time.Minute},
		{in: "2d", want: 48 * time.Hour},
		{in: "inf", want: NoExpiry},
		{in: "Infinite", want: NoExpiry},
		{in: "-5", wantErr: true},
		{in: "", wantErr: true},
		{in: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTTL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSpan(t *testing.T) {
	d, err := parseSpan("7d")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d)

	_, err = parseSpan("7w")
	assert.Error(t, err)
}
