package browser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionDefaults(t *testing.T) {
	s := NewSession(nil)

	assert.False(t, s.Visible())
	assert.False(t, s.IsRunning())
}

func TestSetVisibleBeforeLaunch(t *testing.T) {
	s := NewSession(nil)

	require.NoError(t, s.SetVisible(true))
	assert.True(t, s.Visible())

	// Setting the same mode again is a no-op.
	require.NoError(t, s.SetVisible(true))
	assert.True(t, s.Visible())

	require.NoError(t, s.SetVisible(false))
	assert.False(t, s.Visible())
}

func TestShutdownWithoutLaunch(t *testing.T) {
	s := NewSession(nil)
	assert.NoError(t, s.Shutdown())
}

func TestLaunchErrorCarriesBothCauses(t *testing.T) {
	err := &LaunchError{
		Primary:  errors.New("executable not found"),
		Fallback: errors.New("sandbox unavailable"),
	}

	assert.Contains(t, err.Error(), "executable not found")
	assert.Contains(t, err.Error(), "sandbox unavailable")
}

func TestPrimaryLaunchUsesStealthArgs(t *testing.T) {
	s := NewSession(DefaultOptions())

	opts := s.primaryLaunchOptions()
	assert.Contains(t, opts.Args, "--disable-blink-features=AutomationControlled")
	require.NotNil(t, opts.Headless)
	assert.True(t, *opts.Headless)

	// Conservative config always runs headless with a minimal arg set.
	conservative := s.conservativeLaunchOptions()
	require.NotNil(t, conservative.Headless)
	assert.True(t, *conservative.Headless)
	assert.Less(t, len(conservative.Args), len(opts.Args))
}

func TestHeadersIncludeAcceptLanguage(t *testing.T) {
	s := NewSession(DefaultOptions())

	headers := s.headers()
	assert.Equal(t, "en-US,en;q=0.9", headers["Accept-Language"])
	assert.NotEmpty(t, headers["Accept"])
}
