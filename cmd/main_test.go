package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{size: 512, want: "512 B"},
		{size: 2048, want: "2.0 KiB"},
		{size: 4_700_000_000, want: "4.4 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatSize(tt.size))
		})
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"workspace", "create"},
		{"workspace", "rm"},
		{"chat"},
		{"memory", "eval"},
		{"models", "list"},
		{"models", "load"},
		{"eval"},
		{"config", "schema"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
