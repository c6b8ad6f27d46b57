package sweep

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagarr/tagarr/internal/registry"
	"github.com/tagarr/tagarr/internal/testutil"
)

func newSweeper(dryRun bool) *Sweeper {
	return New(dryRun, testutil.NopLogger())
}

func seeded() *registry.Fake {
	f := registry.NewFake("primary")
	f.AddItem(registry.Item{ID: 1, Title: "Dune"}, "dv", "flame")
	f.AddLabel("hdr10")
	f.AddLabel("flux")
	f.AddLabel("operator-made")
	return f
}

func TestSweep_DeletesZeroMemberLabels(t *testing.T) {
	f := seeded()
	res := newSweeper(false).Sweep(context.Background(), []registry.Registry{f},
		[]string{"dv", "flame", "hdr10", "flux", "cm4"})

	require.Len(t, res.Deleted, 2)
	assert.Equal(t, "flux", res.Deleted[0].Category)
	assert.Equal(t, "hdr10", res.Deleted[1].Category)
	assert.Equal(t, 2, res.Count())
	assert.Equal(t, 2, f.Deletes)

	assert.False(t, f.HasLabelNamed("hdr10"))
	assert.True(t, f.HasLabelNamed("dv"))
	assert.True(t, f.HasLabelNamed("operator-made"), "unmanaged labels are never swept")
}

func TestSweep_DryRunOnlyLogs(t *testing.T) {
	f := seeded()
	res := newSweeper(true).Sweep(context.Background(), []registry.Registry{f}, []string{"hdr10"})

	assert.True(t, res.DryRun)
	require.Len(t, res.Deleted, 1)
	assert.Zero(t, f.Mutations())
	assert.True(t, f.HasLabelNamed("hdr10"))
}

func TestSweep_EveryRegistry(t *testing.T) {
	primary := seeded()
	secondary := registry.NewFake("secondary")
	secondary.AddLabel("hdr10")
	broken := registry.NewFake("broken")
	broken.Err = registry.ErrUnavailable

	res := newSweeper(false).Sweep(context.Background(),
		[]registry.Registry{primary, broken, secondary}, []string{"hdr10"})

	assert.Equal(t, 2, res.Count())
	assert.Equal(t, []string{"broken"}, res.Unchecked)
	assert.False(t, secondary.HasLabelNamed("hdr10"))
}
