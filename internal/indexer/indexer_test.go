package indexer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/gre2g/internal/blobstore"
	"github.com/zsiec/gre2g/internal/config"
	"github.com/zsiec/gre2g/internal/decoder"
	"github.com/zsiec/gre2g/internal/errors"
	"github.com/zsiec/gre2g/internal/frame"
	"github.com/zsiec/gre2g/internal/mappingtable"
	"github.com/zsiec/gre2g/internal/registry"
)

var testRes = frame.Resolution{Width: 16, Height: 8, Channels: 3}

type fixture struct {
	cfg      *config.Config
	store    *blobstore.FileSystemStore
	runs     *registry.MemoryRegistry
	ix       *Indexer
	opened   []string
	frames   []frame.Frame
	openErr  error
	videoSrc string
}

func solid(v byte) frame.Frame {
	f := frame.New(testRes)
	f.Fill(v, v, v)
	return f
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Settings.BlobDBPath = filepath.Join(dir, "db")
	cfg.Settings.TempPath = filepath.Join(dir, "temp")
	cfg.Settings.RecordingsLoc = "data/recordings"
	cfg.KeyFrameDet.Algorithm = "frames_ratio"
	cfg.KeyFrameDet.ProcessingWidth = 8
	cfg.KeyFrameDet.ProcessingHeight = 4
	cfg.KeyFrameDet.MaxTemporalLag = 1
	cfg.KeyFrameDet.MinKFDistance = 2
	cfg.KeyFrameDet.Threshold = 0.3

	store, err := blobstore.NewFileSystemStore(cfg.Settings.BlobDBPath, mappingtable.Format(cfg.Settings.MappingTableFormat), nil)
	require.NoError(t, err)

	fx := &fixture{cfg: cfg, store: store, runs: registry.NewMemoryRegistry()}
	fx.ix = New(cfg, store, fx.runs, nil, WithSourceOpener(func(ctx context.Context, path string) (decoder.Source, error) {
		fx.opened = append(fx.opened, path)
		if fx.openErr != nil {
			return nil, fx.openErr
		}
		return decoder.NewSliceSource(testRes, fx.frames), nil
	}))

	require.NoError(t, fx.ix.Init(context.Background()))

	fx.videoSrc = filepath.Join(dir, "match one.mp4")
	require.NoError(t, os.WriteFile(fx.videoSrc, []byte("fake video bytes"), 0o644))
	return fx
}

var ref = RecordingRef{Game: "chess", Track: "final", Tech: "cam1"}

func TestInit(t *testing.T) {
	fx := newFixture(t)

	root, err := fx.store.GetLevelContent(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"data"}, root)

	p, err := fx.store.Resolve([]string{"data", "recordings"})
	require.NoError(t, err)
	assert.Equal(t, []string{"data", "recordings"}, p.Elems, "recordings location is stored without hashing")

	assert.DirExists(t, fx.cfg.Settings.TempPath)
}

func TestAddRecording(t *testing.T) {
	fx := newFixture(t)

	path, err := fx.ix.AddRecording(context.Background(), AddRequest{RecordingRef: ref, RecordingPath: fx.videoSrc})
	require.NoError(t, err)
	assert.Equal(t, []string{"data", "recordings", "chess", "final", "cam1", "match one.mp4"}, path)

	data, err := fx.store.GetFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake video bytes"), data)

	p, err := fx.store.Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, blobstore.DeriveID("chess", true), p.Elems[2])
	assert.Equal(t, blobstore.DeriveID("match one.mp4", true), p.Elems[5])

	_, err = fx.ix.AddRecording(context.Background(), AddRequest{RecordingRef: ref, RecordingPath: fx.videoSrc})
	assert.True(t, errors.IsAlreadyExists(err))
}

func TestAddRecordingErrors(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.ix.AddRecording(context.Background(), AddRequest{RecordingRef: ref, RecordingPath: "/does/not/exist.mp4"})
	assert.True(t, errors.IsNotFound(err))

	_, err = fx.ix.AddRecording(context.Background(), AddRequest{RecordingRef: RecordingRef{Game: "g"}, RecordingPath: fx.videoSrc})
	assert.True(t, errors.IsValidation(err))
}

func TestIndexRecording(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.ix.AddRecording(context.Background(), AddRequest{RecordingRef: ref, RecordingPath: fx.videoSrc})
	require.NoError(t, err)

	fx.frames = []frame.Frame{solid(50), solid(50), solid(50), solid(200), solid(200), solid(10), solid(10)}

	run, err := fx.ix.IndexRecording(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusCompleted, run.Status)
	assert.Equal(t, 7, run.FrameCount)
	// frame 0 against the empty window, 3 and 5 on content changes.
	assert.Equal(t, []int{0, 3, 5}, run.KeyFrames)

	require.Len(t, fx.opened, 1)
	assert.Equal(t, filepath.Join(fx.cfg.Settings.TempPath, "index_recording_cmd", "recording.mp4"), fx.opened[0])
	pulled, err := os.ReadFile(fx.opened[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("fake video bytes"), pulled)

	res, err := fx.ix.LoadResult(ref)
	require.NoError(t, err)
	assert.Equal(t, &Result{Algorithm: "frames_ratio", FrameCount: 7, KeyFrames: []int{0, 3, 5}}, res)

	stored, err := fx.runs.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusCompleted, stored.Status)
	assert.Equal(t, "match one.mp4", stored.RecordingPath[len(stored.RecordingPath)-1])
}

func TestIndexRecordingReplacesResult(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.ix.AddRecording(context.Background(), AddRequest{RecordingRef: ref, RecordingPath: fx.videoSrc})
	require.NoError(t, err)

	fx.frames = []frame.Frame{solid(50), solid(50)}
	_, err = fx.ix.IndexRecording(context.Background(), ref)
	require.NoError(t, err)

	fx.frames = []frame.Frame{solid(50), solid(50), solid(50)}
	_, err = fx.ix.IndexRecording(context.Background(), ref)
	require.NoError(t, err)

	names, err := fx.store.GetLevelContent(fx.ix.RecordingLevel(ref))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"match one.mp4", KeyFramesFile}, names)

	data, err := fx.store.GetFile(append(fx.ix.RecordingLevel(ref), KeyFramesFile))
	require.NoError(t, err)
	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, float64(3), res["frame_count"])

	runs, err := fx.runs.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestIndexRecordingMissing(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.ix.IndexRecording(context.Background(), ref)
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, fx.store.ForceAddLevel(fx.ix.RecordingLevel(ref), true))
	_, err = fx.ix.IndexRecording(context.Background(), ref)
	assert.True(t, errors.IsNotFound(err), "empty level has no recording")
}

func TestIndexRecordingSourceFailure(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.ix.AddRecording(context.Background(), AddRequest{RecordingRef: ref, RecordingPath: fx.videoSrc})
	require.NoError(t, err)
	fx.openErr = assert.AnError

	run, err := fx.ix.IndexRecording(context.Background(), ref)
	require.ErrorIs(t, err, assert.AnError)
	require.NotNil(t, run)
	assert.Equal(t, registry.StatusFailed, run.Status)

	stored, err := fx.runs.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)

	_, err = fx.ix.LoadResult(ref)
	assert.True(t, errors.IsNotFound(err))
}

func TestIndexRecordingCancelled(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.ix.AddRecording(context.Background(), AddRequest{RecordingRef: ref, RecordingPath: fx.videoSrc})
	require.NoError(t, err)
	fx.frames = []frame.Frame{solid(1), solid(2)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := fx.ix.IndexRecording(ctx, ref)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, registry.StatusFailed, run.Status)
	assert.Equal(t, 0, run.FrameCount)
}

func TestIndexRecordingInvalidDetectorConfig(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.ix.AddRecording(context.Background(), AddRequest{RecordingRef: ref, RecordingPath: fx.videoSrc})
	require.NoError(t, err)

	fx.ix.kfConfig.Threshold = 2
	_, err = fx.ix.IndexRecording(context.Background(), ref)
	assert.True(t, errors.IsValidation(err))

	runs, err := fx.runs.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs, "no run is recorded before the detector exists")
}

func TestPickRecording(t *testing.T) {
	rec, has := pickRecording([]string{KeyFramesFile, "a.mp4", "b.mp4"})
	assert.Equal(t, "a.mp4", rec)
	assert.True(t, has)

	rec, has = pickRecording(nil)
	assert.Empty(t, rec)
	assert.False(t, has)
}
