package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVector(t *testing.T) {
	tests := []struct {
		line    string
		want    []float32
		wantErr bool
	}{
		{line: "1,2,3", want: []float32{1, 2, 3}},
		{line: "0.5 -1.25\t4", want: []float32{0.5, -1.25, 4}},
		{line: " 1, 2 ", want: []float32{1, 2}},
		{line: "", wantErr: true},
		{line: "1,x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseVector(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadVectors(t *testing.T) {
	vectors, err := readVectors(strings.NewReader("# header\n1,2\n\n3 4\n"))
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, vectors)

	_, err = readVectors(strings.NewReader("1,2\n3,4,5\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = readVectors(strings.NewReader("# nothing\n"))
	assert.Error(t, err)
}
