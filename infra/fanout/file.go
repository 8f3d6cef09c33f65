package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileProvider appends one self-describing JSON record per notification to a
// log file, creating parent directories as needed.
type FileProvider struct {
	mu   sync.Mutex
	path string
	file *os.File
}

func NewFileProvider(path string) (*FileProvider, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create event log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log %s: %w", path, err)
	}
	return &FileProvider{path: path, file: file}, nil
}

func (p *FileProvider) Name() string {
	return "file"
}

func (p *FileProvider) Publish(_ context.Context, notification Notification) error {
	line, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.file.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}

func (p *FileProvider) PublishBatch(ctx context.Context, notifications []Notification) error {
	return publishEach(ctx, p, notifications)
}

func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.file.Close()
}
