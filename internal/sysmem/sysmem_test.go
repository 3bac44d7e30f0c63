package sysmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampler(t *testing.T) {
	s, err := NewSampler()
	require.NoError(t, err)

	usage, err := s.Sample()
	require.NoError(t, err)
	assert.Greater(t, usage, uint64(0))

	available, err := s.Available()
	require.NoError(t, err)
	assert.Greater(t, available, uint64(0))
}
