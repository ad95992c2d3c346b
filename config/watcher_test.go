package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapstack/corefw/events"
)

const watcherDocA = `
[[tap_hold]]
position = 1
tapping_term_ms = 200
flavor = "balanced"
tap = { behavior = "send_key", param1 = 7, param2 = 4 }
hold = { behavior = "register_mod", param1 = 2 }
`

const watcherDocB = `
[[tap_hold]]
position = 1
tapping_term_ms = 150
flavor = "balanced"
tap = { behavior = "send_key", param1 = 7, param2 = 4 }
hold = { behavior = "register_mod", param1 = 2 }
`

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device.toml")
	require.NoError(t, os.WriteFile(path, []byte(watcherDocA), 0o644))

	loads := make(chan *Resolved, 4)
	w, err := NewWatcher(path, nil, nil, func(r *Resolved) { loads <- r })
	require.NoError(t, err)
	defer w.Close()

	// The initial load is delivered synchronously from NewWatcher.
	initial := <-loads
	assert.Equal(t, uint16(200), initial.TapHolds[events.Position(1)].TappingTermMs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(watcherDocB), 0o644))

	select {
	case reloaded := <-loads:
		assert.Equal(t, uint16(150), reloaded.TapHolds[events.Position(1)].TappingTermMs)
		assert.Equal(t, uint16(150), w.Current().TapHolds[events.Position(1)].TappingTermMs)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed after writing the config file")
	}
}

func TestWatcherKeepsPreviousConfigOnBrokenWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device.toml")
	require.NoError(t, os.WriteFile(path, []byte(watcherDocA), 0o644))

	w, err := NewWatcher(path, nil, nil, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("flavor = ["), 0o644))
	time.Sleep(500 * time.Millisecond)

	assert.Equal(t, uint16(200), w.Current().TapHolds[events.Position(1)].TappingTermMs)
}
