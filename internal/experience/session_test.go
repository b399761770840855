package experience

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/chessexp/internal/graph"
	"github.com/freeeve/chessexp/internal/store"
)

var (
	e2e4 = graph.EncodeMove(12, 28, graph.PromoNone)
	d2d4 = graph.EncodeMove(11, 27, graph.PromoNone)
)

func seed(t *testing.T, path string, recs ...store.Record) {
	t.Helper()
	data := []byte(store.Signature)
	for _, r := range recs {
		data = store.AppendRecord(data, r)
	}
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func fileRecords(t *testing.T, path string) int {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return int((info.Size() - int64(store.SignatureLen)) / store.RecordSize)
}

func TestOpenLoadsInBackground(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.bin")
	seed(t, path, store.NewRecord(1, e2e4, 20, 10), store.NewRecord(1, d2d4, 30, 12))

	s := Open(Config{Enabled: true, Path: path})
	defer s.Close()

	require.NoError(t, s.WaitForLoad())
	recs := s.Probe(1)
	require.Len(t, recs, 2)
	assert.Equal(t, d2d4, recs[0].Move)
	assert.Nil(t, s.Probe(2))
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.bin")
	s := Open(Config{Enabled: true, Path: path})
	require.NoError(t, s.WaitForLoad())
	assert.Nil(t, s.Probe(1))

	s.AddPV(store.NewRecord(1, e2e4, 20, 10))
	require.NoError(t, s.Close())
	assert.Equal(t, 1, fileRecords(t, path))
}

func TestOpenDisabled(t *testing.T) {
	s := Open(Config{})
	defer s.Close()
	assert.False(t, s.Enabled())
	assert.ErrorIs(t, s.WaitForLoad(), ErrDisabled)
	assert.Nil(t, s.Prober())

	s.AddPV(store.NewRecord(1, e2e4, 20, 10))
	assert.False(t, s.HasNewExperience())
	_, err := s.Stats()
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestReadOnlyIgnoresResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.bin")
	seed(t, path, store.NewRecord(1, e2e4, 20, 10))

	s := Open(Config{Enabled: true, Path: path, ReadOnly: true})
	s.AddPV(store.NewRecord(2, e2e4, 20, 10))
	s.AddMultiPV(store.NewRecord(2, d2d4, 20, 10))
	assert.False(t, s.HasNewExperience())
	require.NoError(t, s.Close())

	assert.Equal(t, 1, fileRecords(t, path))
}

func TestPauseLearning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.bin")
	s := Open(Config{Enabled: true, Path: path})
	defer s.Close()

	s.PauseLearning()
	assert.True(t, s.IsLearningPaused())
	s.AddPV(store.NewRecord(2, e2e4, 20, 10))
	assert.False(t, s.HasNewExperience())

	s.ResumeLearning()
	assert.False(t, s.IsLearningPaused())
	s.AddMultiPV(store.NewRecord(2, d2d4, 20, 10))
	assert.True(t, s.HasNewExperience())
}

func TestSaveAppendsAndClearsPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.bin")
	seed(t, path, store.NewRecord(1, e2e4, 20, 10))

	s := Open(Config{Enabled: true, Path: path})
	defer s.Close()
	require.NoError(t, s.WaitForLoad())

	s.AddPV(store.NewRecord(2, e2e4, 20, 10))
	require.NoError(t, s.Save())
	assert.False(t, s.HasNewExperience())
	assert.Equal(t, 2, fileRecords(t, path))

	// Saved results are not visible until a reload.
	assert.Nil(t, s.Probe(2))
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.bin")
	seed(t, path, store.NewRecord(1, e2e4, 20, 10))

	s := Open(Config{Enabled: true, Path: path})
	defer s.Close()

	// Nothing new: no reload, no write.
	require.NoError(t, s.Reload())
	assert.Equal(t, 1, fileRecords(t, path))

	s.AddPV(store.NewRecord(2, d2d4, -5, 9))
	require.NoError(t, s.Reload())
	require.NoError(t, s.WaitForLoad())

	recs := s.Probe(2)
	require.Len(t, recs, 1)
	assert.Equal(t, int32(-5), recs[0].Value)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Positions: 2, Moves: 2}, st)
}

func TestApply(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	seed(t, a, store.NewRecord(1, e2e4, 20, 10))
	seed(t, b, store.NewRecord(7, d2d4, 20, 10))

	s := Open(Config{Enabled: true, Path: a})
	defer s.Close()
	require.NoError(t, s.WaitForLoad())
	require.Len(t, s.Probe(1), 1)

	// Pending results go to the old file before switching.
	s.AddPV(store.NewRecord(3, e2e4, 20, 10))
	require.NoError(t, s.Apply(Config{Enabled: true, Path: b}))
	assert.Equal(t, 2, fileRecords(t, a))
	assert.Nil(t, s.Probe(1))
	assert.Len(t, s.Probe(7), 1)

	// Toggling read-only keeps the loaded store.
	require.NoError(t, s.Apply(Config{Enabled: true, Path: b, ReadOnly: true}))
	assert.Len(t, s.Probe(7), 1)
	s.AddPV(store.NewRecord(8, e2e4, 20, 10))
	assert.False(t, s.HasNewExperience())

	require.NoError(t, s.Apply(Config{Enabled: false, Path: b}))
	assert.False(t, s.Enabled())
	assert.Nil(t, s.Probe(7))

	require.NoError(t, s.Apply(Config{Enabled: true, Path: b}))
	assert.True(t, s.Enabled())
	assert.Len(t, s.Probe(7), 1)
}

func TestWaitForLoadReportsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.bin")
	require.NoError(t, os.WriteFile(path, []byte("garbage!"), 0644))

	s := Open(Config{Enabled: true, Path: path})
	defer s.Close()
	var ferr *store.FormatError
	assert.ErrorAs(t, s.WaitForLoad(), &ferr)
	assert.Nil(t, s.Probe(1))
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, DefaultFile, Config{}.withDefaults().Path)
}
