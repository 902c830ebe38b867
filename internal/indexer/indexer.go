// Package indexer implements the gre2g commands: initialising the store,
// adding recordings and indexing them for key frames.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/zsiec/gre2g/internal/blobstore"
	"github.com/zsiec/gre2g/internal/config"
	"github.com/zsiec/gre2g/internal/decoder"
	"github.com/zsiec/gre2g/internal/errors"
	"github.com/zsiec/gre2g/internal/keyframe"
	"github.com/zsiec/gre2g/internal/logger"
	"github.com/zsiec/gre2g/internal/metrics"
	"github.com/zsiec/gre2g/internal/registry"
)

const (
	// KeyFramesFile holds the indexing result next to the recording.
	KeyFramesFile = "key_frames.json"

	tempDirName       = "index_recording_cmd"
	tempRecordingName = "recording"
)

// SourceOpener opens a decoded frame source for a local video file.
type SourceOpener func(ctx context.Context, path string) (decoder.Source, error)

// Result is the stored outcome of an indexing run.
type Result struct {
	Algorithm  string `json:"algorithm"`
	FrameCount int    `json:"frame_count"`
	KeyFrames  []int  `json:"key_frames"`
}

// RecordingRef names a recording by its three namespace levels.
type RecordingRef struct {
	Game  string
	Track string
	Tech  string
}

func (r RecordingRef) validate() error {
	if r.Game == "" || r.Track == "" || r.Tech == "" {
		return errors.NewValidationError("game, track and tech are required")
	}
	return nil
}

// AddRequest describes a recording file to import.
type AddRequest struct {
	RecordingRef
	RecordingPath string
}

// Indexer runs commands against one store.
type Indexer struct {
	settings config.SettingsConfig
	kfConfig config.KeyFrameConfig
	store    blobstore.Store
	runs     registry.Registry
	open     SourceOpener
	log      logger.Logger
}

// Option customises an Indexer.
type Option func(*Indexer)

// WithSourceOpener replaces the ffmpeg frame source.
func WithSourceOpener(open SourceOpener) Option {
	return func(ix *Indexer) { ix.open = open }
}

// New creates an Indexer. A nil registry keeps runs in memory.
func New(cfg *config.Config, store blobstore.Store, runs registry.Registry, log logger.Logger, opts ...Option) *Indexer {
	if log == nil {
		log = logger.NewNullLogger()
	}
	if runs == nil {
		runs = registry.NewMemoryRegistry()
	}
	ix := &Indexer{
		settings: cfg.Settings,
		kfConfig: cfg.KeyFrameDet,
		store:    store,
		runs:     runs,
		log:      log.WithField("component", "indexer"),
	}
	ix.open = func(ctx context.Context, path string) (decoder.Source, error) {
		return decoder.OpenFFmpeg(ctx, decoder.FFmpegOptions{
			FFmpegPath:  cfg.Settings.FFmpegPath,
			FFprobePath: cfg.Settings.FFprobePath,
		}, path, ix.log)
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// RecordingLevel returns the store level holding a recording.
func (ix *Indexer) RecordingLevel(ref RecordingRef) []string {
	level := ix.settings.RecordingsLevelPath()
	return append(level, ref.Game, ref.Track, ref.Tech)
}

// Init wipes the store, creates the recordings level and a fresh temp dir.
func (ix *Indexer) Init(ctx context.Context) error {
	if err := ix.store.Initialize(); err != nil {
		return err
	}
	if err := ix.store.ForceAddLevel(ix.settings.RecordingsLevelPath(), false); err != nil {
		return err
	}
	if err := resetDir(ix.settings.TempPath); err != nil {
		return err
	}

	ix.log.WithFields(map[string]interface{}{
		"blob_db_path":   ix.settings.BlobDBPath,
		"recordings_loc": ix.settings.RecordingsLoc,
	}).Info("Store initialized")
	return nil
}

// AddRecording imports a local video file. It returns the store path of
// the added file.
func (ix *Indexer) AddRecording(ctx context.Context, req AddRequest) ([]string, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(req.RecordingPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapNotFoundError(err, "recording "+req.RecordingPath)
		}
		return nil, errors.WrapIOError(err, "failed to read recording")
	}

	level := ix.RecordingLevel(req.RecordingRef)
	if err := ix.store.ForceAddLevel(level, true); err != nil {
		return nil, err
	}
	name := filepath.Base(req.RecordingPath)
	if err := ix.store.AddFile(level, data, name, true); err != nil {
		return nil, err
	}

	path := append(level, name)
	ix.log.WithFields(map[string]interface{}{
		"level_path": blobstore.JoinPath(path),
		"bytes":      len(data),
	}).Info("Recording added")
	return path, nil
}

// IndexRecording runs key-frame detection over a stored recording and
// saves the result next to it. The returned run is also kept in the
// registry, including failed runs.
func (ix *Indexer) IndexRecording(ctx context.Context, ref RecordingRef) (*registry.Run, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	level := ix.RecordingLevel(ref)

	names, err := ix.store.GetLevelContent(level)
	if err != nil {
		return nil, err
	}
	recording, hasResult := pickRecording(names)
	if recording == "" {
		return nil, errors.NewNotFoundError("recording in " + blobstore.JoinPath(level))
	}
	recordingPath := append(append([]string(nil), level...), recording)

	tempDir := filepath.Join(ix.settings.TempPath, tempDirName)
	if err := resetDir(tempDir); err != nil {
		return nil, err
	}
	det, err := keyframe.New(ix.kfConfig, filepath.Join(tempDir, "algs", "key_frame_det"), ix.log)
	if err != nil {
		return nil, err
	}

	run := registry.NewRun(recordingPath, det.Name())
	if err := ix.runs.Start(ctx, run); err != nil {
		return nil, err
	}
	log := ix.log.WithFields(map[string]interface{}{
		"run_id":     run.ID,
		"level_path": blobstore.JoinPath(recordingPath),
		"algorithm":  det.Name(),
	})
	log.Info("Indexing started")

	frames, keyFrames, err := ix.detect(ctx, det, recordingPath, filepath.Join(tempDir, tempRecordingName+filepath.Ext(recording)))
	if err == nil {
		err = ix.storeResult(level, hasResult, Result{Algorithm: det.Name(), FrameCount: frames, KeyFrames: keyFrames})
	}

	if err != nil {
		run.Fail(frames, err)
	} else {
		run.Complete(frames, keyFrames)
	}
	if ferr := ix.runs.Finish(context.WithoutCancel(ctx), run); ferr != nil {
		log.WithError(ferr).Warn("Failed to record run outcome")
	}
	metrics.RecordIndexRun(det.Name(), string(run.Status), run.Duration().Seconds())

	if err != nil {
		log.WithError(err).WithField("frames", frames).Error("Indexing failed")
		return run, err
	}
	log.WithFields(map[string]interface{}{
		"frames":     frames,
		"key_frames": len(keyFrames),
		"duration":   run.Duration().Round(time.Millisecond).String(),
	}).Info("Indexing finished")
	return run, nil
}

// LoadResult reads the stored result of the last indexing run.
func (ix *Indexer) LoadResult(ref RecordingRef) (*Result, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	data, err := ix.store.GetFile(append(ix.RecordingLevel(ref), KeyFramesFile))
	if err != nil {
		return nil, err
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, errors.WrapInternalError(err, "invalid key frames result")
	}
	return &res, nil
}

// detect pulls the recording into localPath and feeds every frame to det.
func (ix *Indexer) detect(ctx context.Context, det keyframe.Detector, recordingPath []string, localPath string) (int, []int, error) {
	data, err := ix.store.GetFile(recordingPath)
	if err != nil {
		return 0, nil, err
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return 0, nil, errors.WrapIOError(err, "failed to write temp recording")
	}

	src, err := ix.open(ctx, localPath)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer src.Close()

	if err := det.SetVideoProperties(src.Resolution()); err != nil {
		return 0, nil, err
	}
	defer det.Reset()

	keyFrames := []int{}
	index := 0
	for ; ; index++ {
		if err := ctx.Err(); err != nil {
			return index, keyFrames, err
		}
		f, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return index, keyFrames, err
		}
		if det.Detect(f) {
			keyFrames = append(keyFrames, index)
		}
	}
	return index, keyFrames, nil
}

func (ix *Indexer) storeResult(level []string, replace bool, res Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return errors.WrapInternalError(err, "failed to encode result")
	}
	if replace {
		if err := ix.store.DeleteFile(append(append([]string(nil), level...), KeyFramesFile)); err != nil {
			return err
		}
	}
	return ix.store.AddFile(level, data, KeyFramesFile, false)
}

// pickRecording returns the first entry that is not an indexing result.
func pickRecording(names []string) (recording string, hasResult bool) {
	for _, n := range names {
		if n == KeyFramesFile {
			hasResult = true
			continue
		}
		if recording == "" {
			recording = n
		}
	}
	return recording, hasResult
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.WrapIOError(err, "failed to clear "+dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapIOError(err, "failed to create "+dir)
	}
	return nil
}
