package accesslog

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appLogger "github.com/fastygo/botgateway/pkg/logger"
)

// Sink is the process-wide append-only access log. It is opened once at
// startup and shared by reference; writes are serialized by the zap core.
type Sink struct {
	file   *os.File
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open creates the log directory when missing and opens path for appending.
func Open(path string) (*Sink, error) {
	if path == "" {
		return nil, errors.New("accesslog: path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(
		appLogger.NewEncoder("json"),
		zapcore.Lock(file),
		zapcore.InfoLevel,
	)

	return &Sink{
		file: file,
		// write failures are reported on stderr and never reach the caller
		logger: zap.New(core, zap.ErrorOutput(zapcore.Lock(os.Stderr))),
	}, nil
}

// Logger is the access log writer.
func (s *Sink) Logger() *zap.Logger {
	if s == nil || s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

// Path of the underlying file.
func (s *Sink) Path() string {
	if s == nil || s.file == nil {
		return ""
	}
	return s.file.Name()
}

// Close flushes and closes the file. It is safe to call more than once.
func (s *Sink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		_ = s.logger.Sync()
		s.closeErr = s.file.Close()
	})
	return s.closeErr
}
