// Package download selects catalog entries by year range and retrieves
// their binary payloads.
package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/borshchevsky/tax-forms-scraper/internal/forms"
)

// BinaryFetcher streams one document payload into dst.
type BinaryFetcher interface {
	FetchBinary(ctx context.Context, url string, dst io.Writer) (int64, error)
}

// PathResolver turns a form number and year into a destination path. It is
// caller-owned; the core never computes directory layout itself.
type PathResolver interface {
	DestinationPath(formNumber string, year int) (string, error)
}

// SelectTasks keeps the entries whose year lies in the closed interval
// [startYear, endYear] and builds one task per kept entry. Years the
// catalog does not list are simply absent. An empty intersection is
// forms.ErrNotFoundForRange, distinct from an unknown identifier.
func SelectTasks(entries []forms.Entry, startYear, endYear int, paths PathResolver) ([]forms.DownloadTask, error) {
	var tasks []forms.DownloadTask
	for _, e := range entries {
		if e.Year < startYear || e.Year > endYear {
			continue
		}
		dst, err := paths.DestinationPath(e.FormNumber, e.Year)
		if err != nil {
			return nil, fmt.Errorf("resolve destination for %s %d: %w", e.FormNumber, e.Year, err)
		}
		tasks = append(tasks, forms.DownloadTask{
			FormNumber:      e.FormNumber,
			Year:            e.Year,
			DocumentLink:    e.DocumentLink,
			DestinationPath: dst,
		})
	}
	if len(tasks) == 0 {
		return nil, forms.ErrNotFoundForRange
	}
	return tasks, nil
}

// Fetcher executes download tasks.
type Fetcher struct {
	client BinaryFetcher
	logger *zap.Logger
}

// NewFetcher constructs a Fetcher.
func NewFetcher(client BinaryFetcher, logger *zap.Logger) *Fetcher {
	return &Fetcher{client: client, logger: logger}
}

// Run fetches every task concurrently and reports each one's status in
// task order. A failed task never aborts its siblings.
func (f *Fetcher) Run(ctx context.Context, tasks []forms.DownloadTask) []forms.DownloadResult {
	results := make([]forms.DownloadResult, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		i, task := i, task
		wg.Add(1)
		go func() {
			defer wg.Done()
			bytes, err := f.fetchOne(ctx, task)
			results[i] = forms.DownloadResult{Task: task, Bytes: bytes, Err: err}
			if err != nil {
				f.logger.Warn("document download failed",
					zap.String("form", task.FormNumber),
					zap.Int("year", task.Year),
					zap.Error(err))
				return
			}
			f.logger.Info("document downloaded",
				zap.String("form", task.FormNumber),
				zap.Int("year", task.Year),
				zap.String("path", task.DestinationPath),
				zap.Int64("bytes", bytes))
		}()
	}
	wg.Wait()

	return results
}

// fetchOne streams the payload to a temp file in the destination directory
// and renames it into place on success. Failure or cancellation removes the
// temp file so no partial artifact survives.
func (f *Fetcher) fetchOne(ctx context.Context, task forms.DownloadTask) (int64, error) {
	dir := filepath.Dir(task.DestinationPath)
	tmp, err := os.CreateTemp(dir, filepath.Base(task.DestinationPath)+".part-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bytes, err := f.client.FetchBinary(ctx, task.DocumentLink, tmp)
	if err != nil {
		return bytes, err
	}
	if err := tmp.Close(); err != nil {
		return bytes, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), task.DestinationPath); err != nil {
		return bytes, fmt.Errorf("move download into place: %w", err)
	}
	committed = true
	return bytes, nil
}
