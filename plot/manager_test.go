package plot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/log/logtest"
)

func newTestManager(tb testing.TB, fs afero.Fs, opts ...Opt) *Manager {
	cfg := DefaultConfig()
	cfg.Directories = []string{"/plots", "/more"}
	cfg.DegradedThreshold = 2
	return NewManager(fs, cfg, append([]Opt{WithLogger(logtest.New(tb))}, opts...)...)
}

func TestManagerRescan(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := createPlot(t, fs, "/plots/a.plot", header{seed: 1})
	b := createPlot(t, fs, "/more/nested/b.plot", header{seed: 2})
	require.NoError(t, afero.WriteFile(fs, "/plots/readme.txt", []byte("hi"), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/plots/broken.plot", []byte("nope"), 0o600))

	var changes []*Snapshot
	m := newTestManager(t, fs, WithOnChange(func(s *Snapshot) { changes = append(changes, s) }))
	require.Zero(t, m.Snapshot().Len())

	require.NoError(t, m.Rescan(context.Background()))
	snap := m.Snapshot()
	require.Equal(t, 2, snap.Len())
	_, ok := snap.Get(a.ID())
	require.True(t, ok)
	_, ok = snap.Get(b.ID())
	require.True(t, ok)
	require.Len(t, changes, 1)
	require.Len(t, snap.Summaries(), 2)

	// unchanged rescan keeps the fingerprint and does not notify
	require.NoError(t, m.Rescan(context.Background()))
	require.Equal(t, snap.Fingerprint(), m.Snapshot().Fingerprint())
	require.Len(t, changes, 1)

	require.NoError(t, fs.Remove("/plots/a.plot"))
	require.NoError(t, m.Rescan(context.Background()))
	require.Equal(t, 1, m.Snapshot().Len())
	_, ok = m.Snapshot().Get(a.ID())
	require.False(t, ok)
	require.Len(t, changes, 2)

	// readers holding the old snapshot are unaffected
	require.Equal(t, 2, snap.Len())
}

func TestManagerDuplicates(t *testing.T) {
	fs := afero.NewMemMapFs()
	createPlot(t, fs, "/plots/a.plot", header{seed: 1})
	data, err := afero.ReadFile(fs, "/plots/a.plot")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/more/copy.plot", data, 0o600))

	m := newTestManager(t, fs)
	require.NoError(t, m.Rescan(context.Background()))
	require.Equal(t, 1, m.Snapshot().Len())
}

func TestManagerFarmerKeys(t *testing.T) {
	fs := afero.NewMemMapFs()
	mine := testKey(t, 50)
	createPlot(t, fs, "/plots/mine.plot", header{seed: 1, farmer: mine})
	createPlot(t, fs, "/plots/other.plot", header{seed: 2, farmer: testKey(t, 51)})

	m := newTestManager(t, fs, WithFarmerKeys([]types.Bytes48{mine.PublicKey()}))
	require.NoError(t, m.Rescan(context.Background()))
	require.Equal(t, 1, m.Snapshot().Len())
	require.Equal(t, mine.PublicKey(), m.Snapshot().Plots()[0].Info().FarmerPublicKey)
}

func TestManagerDegraded(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := createPlot(t, fs, "/plots/a.plot", header{seed: 1})
	b := createPlot(t, fs, "/plots/b.plot", header{seed: 2})

	m := newTestManager(t, fs)
	require.NoError(t, m.Rescan(context.Background()))

	failure := errors.New("read failed")
	require.False(t, m.ReportFailure(a.ID(), failure))
	m.ReportSuccess(a.ID())
	require.False(t, m.ReportFailure(a.ID(), failure))
	require.True(t, m.ReportFailure(a.ID(), failure))
	require.False(t, m.ReportFailure(a.ID(), failure))

	snap := m.Snapshot()
	require.Equal(t, 1, snap.Len())
	_, ok := snap.Get(b.ID())
	require.True(t, ok)
	require.Equal(t, []types.PlotError{{PlotID: a.ID(), Err: "read failed"}}, m.Degraded())

	// a rescan retries degraded plots
	require.NoError(t, m.Rescan(context.Background()))
	require.Equal(t, 2, m.Snapshot().Len())
	require.Empty(t, m.Degraded())
}

func TestManagerRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	createPlot(t, fs, "/plots/a.plot", header{seed: 1})

	clock := clockwork.NewFakeClock()
	changed := make(chan *Snapshot, 10)
	m := newTestManager(t, fs,
		WithClock(clock),
		WithOnChange(func(s *Snapshot) { changed <- s }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case s := <-changed:
		require.Equal(t, 1, s.Len())
	case <-time.After(5 * time.Second):
		require.FailNow(t, "initial scan timed out")
	}

	createPlot(t, fs, "/plots/b.plot", header{seed: 2})
	clock.BlockUntil(1)
	clock.Advance(m.cfg.RescanInterval)
	select {
	case s := <-changed:
		require.Equal(t, 2, s.Len())
	case <-time.After(5 * time.Second):
		require.FailNow(t, "interval rescan timed out")
	}

	createPlot(t, fs, "/plots/c.plot", header{seed: 3})
	m.Trigger()
	select {
	case s := <-changed:
		require.Equal(t, 3, s.Len())
	case <-time.After(5 * time.Second):
		require.FailNow(t, "triggered rescan timed out")
	}

	cancel()
	require.NoError(t, <-done)
}
