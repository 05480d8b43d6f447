package audit

import (
	"context"
	"encoding/json"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"trustcore/internal/audit/domain"
)

// FileSinkConfig configures the rotating JSONL event file.
type FileSinkConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// FileSink appends each event as one JSON line to a size-rotated file.
type FileSink struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewFileSink returns a FileSink writing to cfg.Path. The file and its
// directory are created on first write.
func NewFileSink(cfg FileSinkConfig) *FileSink {
	return &FileSink{out: &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}}
}

func (s *FileSink) WriteEvent(ctx context.Context, e *domain.Event) error {
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.out.Write(line)
	return err
}

// Close closes the current log file.
func (s *FileSink) Close() error {
	return s.out.Close()
}
