package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const logBaseName = "vistagrid.log"

// Rotator is an io.Writer that rotates vistagrid.log by size, keeping
// a bounded number of gzip-compressed, timestamped backups.
type Rotator struct {
	mu         sync.Mutex
	dir        string
	maxSize    int64
	maxBackups int

	file *os.File
	size int64
}

// NewRotator opens (or creates) the log file under dir.
func NewRotator(dir string, maxSizeMB, maxBackups int) (*Rotator, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	r := &Rotator{
		dir:        dir,
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rotator) open() error {
	path := filepath.Join(r.dir, logBaseName)
	if info, err := os.Stat(path); err == nil {
		r.size = info.Size()
	} else {
		r.size = 0
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	r.file = file
	return nil
}

// Write implements io.Writer.
func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	if r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *Rotator) rotate() error {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}

	current := filepath.Join(r.dir, logBaseName)
	backup := filepath.Join(r.dir, fmt.Sprintf("%s.%s", logBaseName, time.Now().Format("2006-01-02-15-04-05")))
	if err := os.Rename(current, backup); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}
	if err := compressFile(backup); err == nil {
		os.Remove(backup)
	}
	r.removeExcessBackups()

	r.size = 0
	return r.open()
}

func compressFile(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

func (r *Rotator) removeExcessBackups() {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return
	}

	var backups []os.FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), logBaseName+".") {
			continue
		}
		if info, err := e.Info(); err == nil {
			backups = append(backups, info)
		}
	}
	if r.maxBackups <= 0 || len(backups) <= r.maxBackups {
		return
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].ModTime().Before(backups[j].ModTime())
	})
	for _, info := range backups[:len(backups)-r.maxBackups] {
		os.Remove(filepath.Join(r.dir, info.Name()))
	}
}

// Close closes the current log file.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
