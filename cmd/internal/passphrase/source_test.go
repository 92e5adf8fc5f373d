package passphrase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceReadsEnvironment(t *testing.T) {
	src := NewSource("GIG_KEY_PASSPHRASE")
	src.lookup = func(key string) (string, bool) {
		require.Equal(t, "GIG_KEY_PASSPHRASE", key)
		return "hunter2", true
	}
	value, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "hunter2", value)

	src.lookup = func(string) (string, bool) { return "changed", true }
	value, err = src.Get()
	require.NoError(t, err)
	require.Equal(t, "hunter2", value, "first result is cached")
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	src := NewSource("GIG_KEY_PASSPHRASE")
	src.lookup = func(string) (string, bool) { return "  ", true }
	_, err := src.Get()
	require.ErrorContains(t, err, "set but empty")
}

func TestStaticSource(t *testing.T) {
	value, err := NewStaticSource("pw").Get()
	require.NoError(t, err)
	require.Equal(t, "pw", value)

	_, err = NewStaticSource("").Get()
	require.Error(t, err)
}
