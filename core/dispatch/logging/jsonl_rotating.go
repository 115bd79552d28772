package logging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotatingJSONLStore is a JSONLStore whose file is rotated by lumberjack.
type RotatingJSONLStore struct {
	mu   sync.Mutex
	out  *lumberjack.Logger
	path string
}

// NewRotatingJSONLStore rotates path once it exceeds maxSizeMB, keeping at
// most maxBackups files no older than maxAgeDays. Zero disables a limit.
func NewRotatingJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingJSONLStore, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return &RotatingJSONLStore{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		},
		path: path,
	}, nil
}

func (s *RotatingJSONLStore) Append(ctx context.Context, rec LogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// one write per record so a rotation never splits a line
	_, err = s.out.Write(append(b, '\n'))
	return err
}

// files lists the rotated backups, oldest first, then the active file.
// Backups last written before q.Start cannot hold a match and are skipped.
func (s *RotatingJSONLStore) files(q LogQuery) ([]string, error) {
	ext := filepath.Ext(s.path)
	backups, err := filepath.Glob(s.path[:len(s.path)-len(ext)] + "-*" + ext)
	if err != nil {
		return nil, err
	}
	// lumberjack names backups with a sortable timestamp
	sort.Strings(backups)
	out := make([]string, 0, len(backups)+1)
	for _, name := range backups {
		if !q.Start.IsZero() {
			if fi, err := os.Stat(name); err == nil && fi.ModTime().Before(q.Start) {
				continue
			}
		}
		out = append(out, name)
	}
	return append(out, s.path), nil
}

func (s *RotatingJSONLStore) Query(ctx context.Context, q LogQuery) ([]LogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names, err := s.files(q)
	if err != nil {
		return nil, err
	}
	var res []LogRecord
	for _, name := range names {
		f, err := os.Open(name)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res, err = scanRecords(ctx, f, q, res)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *RotatingJSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Close()
}
