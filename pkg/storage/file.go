package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/HatiCode/gridcast/pkg/timing"
)

// FileStore persists snapshots as plain text files in a directory:
//
//	drivers-<season>.txt   one driver code per line
//	races-<season>.txt     one race name per line, calendar order
//
// The files carry no header; the snapshot creation time is the files'
// modification time, which Put sets explicitly to Snapshot.CreatedAt. Each
// file is written to a temporary file and renamed into place, so a reader
// sees either the previous or the new content of a file, never a torn one.
type FileStore struct {
	dir string
	// mu serializes Put against Get so both files of a season change together
	// from the point of view of this process.
	mu sync.RWMutex
}

// NewFileStore creates a store rooted at dir, creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (f *FileStore) Dir() string { return f.dir }

func (f *FileStore) driversPath(season int) string {
	return filepath.Join(f.dir, fmt.Sprintf("drivers-%d.txt", season))
}

func (f *FileStore) racesPath(season int) string {
	return filepath.Join(f.dir, fmt.Sprintf("races-%d.txt", season))
}

// Put writes both lists of the snapshot, replacing the previous files.
func (f *FileStore) Put(ctx context.Context, snapshot Snapshot) error {
	if err := validSeason(snapshot.Season); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	createdAt := snapshot.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	drivers := make([]string, len(snapshot.Drivers))
	for i, d := range snapshot.Drivers {
		drivers[i] = string(d)
	}
	races := make([]string, len(snapshot.Races))
	for i, r := range snapshot.Races {
		races[i] = string(r)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := writeLines(f.driversPath(snapshot.Season), drivers, createdAt); err != nil {
		return fmt.Errorf("write drivers: %w", err)
	}
	if err := writeLines(f.racesPath(snapshot.Season), races, createdAt); err != nil {
		return fmt.Errorf("write races: %w", err)
	}
	return nil
}

// Get reads the snapshot of a season. A season with either file missing is
// reported as not found. CreatedAt is the older of the two file times.
func (f *FileStore) Get(ctx context.Context, season int) (Snapshot, bool, error) {
	if err := validSeason(season); err != nil {
		return Snapshot{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, false, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	drivers, driversTime, err := readLines(f.driversPath(season))
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read drivers: %w", err)
	}

	races, racesTime, err := readLines(f.racesPath(season))
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read races: %w", err)
	}

	snapshot := Snapshot{
		Season:    season,
		Drivers:   make([]timing.Driver, len(drivers)),
		Races:     make([]timing.Race, len(races)),
		CreatedAt: driversTime,
	}
	if racesTime.Before(driversTime) {
		snapshot.CreatedAt = racesTime
	}
	for i, d := range drivers {
		snapshot.Drivers[i] = timing.Driver(d)
	}
	for i, r := range races {
		snapshot.Races[i] = timing.Race(r)
	}

	return snapshot, true, nil
}

func writeLines(path string, lines []string, mtime time.Time) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chtimes(tmpName, mtime, mtime); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func readLines(path string) ([]string, time.Time, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, time.Time{}, err
	}

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, time.Time{}, err
	}

	return lines, info.ModTime(), nil
}
