package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/gre2g/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.LoggingConfig
		wantErr bool
		check   func(t *testing.T, logger *logrus.Logger)
	}{
		{
			name:   "json format stdout",
			config: &config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
			check: func(t *testing.T, logger *logrus.Logger) {
				assert.Equal(t, logrus.InfoLevel, logger.Level)
				_, ok := logger.Formatter.(*logrus.JSONFormatter)
				assert.True(t, ok)
			},
		},
		{
			name:   "text format stderr",
			config: &config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"},
			check: func(t *testing.T, logger *logrus.Logger) {
				assert.Equal(t, logrus.DebugLevel, logger.Level)
				_, ok := logger.Formatter.(*logrus.TextFormatter)
				assert.True(t, ok)
			},
		},
		{
			name: "file output",
			config: &config.LoggingConfig{
				Level:      "warn",
				Format:     "json",
				Output:     filepath.Join(t.TempDir(), "logs", "gre2g.log"),
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     7,
			},
			check: func(t *testing.T, logger *logrus.Logger) {
				assert.Equal(t, logrus.WarnLevel, logger.Level)
			},
		},
		{
			name:    "invalid log level",
			config:  &config.LoggingConfig{Level: "loud", Format: "json", Output: "stdout"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, logger)
			}
		})
	}
}

func TestFileOutputCreatesFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "gre2g.log")

	logger, err := New(&config.LoggingConfig{
		Level: "info", Format: "text", Output: logFile, MaxSize: 1, MaxBackups: 1, MaxAge: 1,
	})
	require.NoError(t, err)

	logger.Info("recording added")

	_, err = os.Stat(logFile)
	assert.NoError(t, err)
}

func TestHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	WithComponent(logger, "blobstore").Info("level added")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "blobstore", line["component"])
	assert.Equal(t, "gre2g", line["service"])

	entry := WithLevelPath(logger, []string{"recordings", "gameA"})
	assert.Equal(t, "recordings/gameA", entry.Data["level_path"])

	errEntry := WithError(logger, assert.AnError)
	assert.Equal(t, assert.AnError, errEntry.Data[logrus.ErrorKey])
}

func TestLogrusAdapter(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.JSONFormatter{})
	base.SetLevel(logrus.DebugLevel)

	log := NewLogrusAdapter(logrus.NewEntry(base)).
		WithField("algorithm", "frames_ratio").
		WithFields(map[string]interface{}{"frame": 12})
	log.Debugf("key frame at %d", 12)

	out := buf.String()
	assert.Contains(t, out, "frames_ratio")
	assert.Contains(t, out, "key frame at 12")
	assert.Contains(t, out, `"frame":12`)
}

func TestNullLoggerDoesNotPanic(t *testing.T) {
	log := NewNullLogger()
	assert.NotPanics(t, func() {
		log.WithField("a", 1).WithError(assert.AnError).WithFields(nil).Info("x")
		log.Debugf("%d", 1)
		log.Log(logrus.ErrorLevel, "y")
	})

	assert.NotPanics(t, func() { Discard().Error("dropped") })
}
