package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/forecast"
)

type refusalCounter struct{ n int }

func (r *refusalCounter) RecordSaveRefused() { r.n++ }

func TestFileStoreRoundTripPredictsIdentically(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)
	s := trainedState(t, "sku-1", 90)
	require.Equal(t, models.ModeMLTrained, s.Mode)

	store, err := NewFileModelStore(t.TempDir())
	require.NoError(t, err)

	ok, err := store.Save(ctx, s)
	require.NoError(t, err)
	require.True(t, ok)
	assert.FileExists(t, MetadataPath(store.PathFor("sku-1")))

	loaded, ok, err := store.Load(ctx, "sku-1")
	require.NoError(t, err)
	require.True(t, ok)

	want, err := e.Predict(s, 7)
	require.NoError(t, err)
	got, err := e.Predict(loaded, 7)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, s.Features, loaded.Features)
	assert.Equal(t, s.LastRow, loaded.LastRow)
}

func TestFileStoreColdStartRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)
	s := trainedState(t, "sku-cold", 5)
	require.Equal(t, models.ModeColdStart, s.Mode)

	store, err := NewFileModelStore(t.TempDir())
	require.NoError(t, err)
	ok, err := store.Save(ctx, s)
	require.NoError(t, err)
	require.True(t, ok)

	loaded, ok, err := store.Load(ctx, "sku-cold")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, loaded.Model)
	assert.Nil(t, loaded.Metrics.BaselineMAE)

	want, _ := e.Predict(s, 5)
	got, _ := e.Predict(loaded, 5)
	assert.Equal(t, want, got)
}

func TestFileStoreMetadataSidecar(t *testing.T) {
	s := trainedState(t, "sku-meta", 60)
	store, err := NewFileModelStore(t.TempDir())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "custom", "model.bin")

	ok, err := store.SaveTo(s, path)
	require.NoError(t, err)
	require.True(t, ok)

	b, err := os.ReadFile(filepath.Join(filepath.Dir(path), "model_metadata.json"))
	require.NoError(t, err)
	var m Metadata
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "sku-meta", m.ProductID)
	assert.Equal(t, FormatVersion, m.FormatVersion)
	assert.Equal(t, s.Metrics.ValMAE, m.ValMAE)
	assert.Equal(t, s.Weights, m.Weights)
	assert.InDelta(t, 1.0, m.Weights.Model+m.Weights.Rule, 1e-9)
}

func TestFileStoreOverwriteGuard(t *testing.T) {
	ctx := context.Background()
	s := trainedState(t, "sku-guard", 60)
	require.Greater(t, s.Metrics.ValMAE, 0.0)

	refusals := &refusalCounter{}
	store, err := NewFileModelStore(t.TempDir(), WithRefusalRecorder(refusals))
	require.NoError(t, err)
	ok, err := store.Save(ctx, s)
	require.NoError(t, err)
	require.True(t, ok)

	worseState := *s
	worseState.Metrics.ValMAE = s.Metrics.ValMAE * 1.5
	ok, err = store.Save(ctx, &worseState)
	require.NoError(t, err)
	assert.False(t, ok, "clearly worse model must not replace the artifact")
	assert.Equal(t, 1, refusals.n)

	loaded, _, err := store.Load(ctx, "sku-guard")
	require.NoError(t, err)
	assert.Equal(t, s.Metrics.ValMAE, loaded.Metrics.ValMAE)

	slightly := *s
	slightly.Metrics.ValMAE = s.Metrics.ValMAE * 1.05
	ok, err = store.Save(ctx, &slightly)
	require.NoError(t, err)
	assert.True(t, ok)

	disabled, err := NewFileModelStore(store.dir, WithTolerance(0))
	require.NoError(t, err)
	ok, err = disabled.Save(ctx, &worseState)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStoreColdStartArtifactNeverBlocks(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileModelStore(t.TempDir())
	require.NoError(t, err)

	cold := trainedState(t, "sku-x", 5)
	ok, err := store.Save(ctx, cold)
	require.NoError(t, err)
	require.True(t, ok)

	warm := trainedState(t, "sku-x", 60)
	ok, err = store.Save(ctx, warm)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStoreMissingAndCorrupt(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileModelStore(t.TempDir())
	require.NoError(t, err)

	s, ok, err := store.Load(ctx, "nope")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, s)

	require.NoError(t, os.WriteFile(store.PathFor("bad"), []byte("{not json"), 0o644))
	_, ok, err = store.Load(ctx, "bad")
	assert.False(t, ok)
	assert.ErrorIs(t, err, forecast.ErrPersistence)

	require.NoError(t, os.WriteFile(store.PathFor("future"),
		[]byte(`{"format_version":2,"product_id":"future","state":{}}`), 0o644))
	_, ok, err = store.Load(ctx, "future")
	assert.False(t, ok)
	assert.ErrorIs(t, err, forecast.ErrPersistence)
	assert.Contains(t, err.Error(), "format version 2")
}

func TestFileStoreRejectsForeignArtifact(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileModelStore(t.TempDir())
	require.NoError(t, err)
	s := trainedState(t, "sku-a", 30)
	ok, err := store.SaveTo(s, store.PathFor("sku-b"))
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = store.Load(ctx, "sku-b")
	assert.False(t, ok)
	assert.ErrorIs(t, err, forecast.ErrPersistence)
}

func TestFileStoreRefusesUntrained(t *testing.T) {
	store, err := NewFileModelStore(t.TempDir())
	require.NoError(t, err)
	ok, err := store.Save(context.Background(), &forecast.State{ProductID: "p"})
	assert.False(t, ok)
	assert.ErrorIs(t, err, forecast.ErrPrecondition)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "a_b_c-1.2", safeName("a/b c-1.2"))
}
