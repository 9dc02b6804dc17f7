package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"adbridge/internal/domain"
)

const (
	requestsDirName = "requests"
	resultsDirName  = "results"
)

// JobStore owns the directory pair shared with the worker. Requests are
// written under <root>/requests and results are read from <root>/results.
type JobStore struct {
	root        string
	requestsDir string
	resultsDir  string
}

// NewJobStore configures a store rooted at root. Directories are not created
// until EnsureDirectories is called.
func NewJobStore(root string) (*JobStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("storage: job root path is required")
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &JobStore{
		root:        root,
		requestsDir: filepath.Join(root, requestsDirName),
		resultsDir:  filepath.Join(root, resultsDirName),
	}, nil
}

// Root returns the configured job root.
func (s *JobStore) Root() string { return s.root }

// RequestsDir returns the directory job records are written to.
func (s *JobStore) RequestsDir() string { return s.requestsDir }

// ResultsDir returns the directory the worker writes artifacts to.
func (s *JobStore) ResultsDir() string { return s.resultsDir }

// EnsureDirectories creates both directories if absent. Safe to call repeatedly.
func (s *JobStore) EnsureDirectories() error {
	for _, dir := range []string{s.requestsDir, s.resultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &domain.StoreError{Op: "mkdir", Path: dir, Err: err}
		}
	}
	return nil
}

// Submit writes the job record (and its companion input, if any). It never
// replaces files that already exist for the id; a partially written job is
// removed before the error is returned.
func (s *JobStore) Submit(ctx context.Context, job domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !domain.ValidJobID(job.ID) {
		return fmt.Errorf("storage: %w: %q", domain.ErrInvalidID, job.ID)
	}
	record, err := json.Marshal(job.Record())
	if err != nil {
		return fmt.Errorf("storage: encode job %s: %w", job.ID, err)
	}

	reqPath := filepath.Join(s.requestsDir, domain.RequestFileName(job.ID))
	if _, err := os.Lstat(reqPath); err == nil {
		return &domain.StoreError{Op: "submit", Path: reqPath, Err: domain.ErrJobExists}
	}

	var written []string
	if len(job.Input) > 0 {
		inPath := filepath.Join(s.requestsDir, domain.InputFileName(job.ID))
		if err := writeExclusive(inPath, job.Input); err != nil {
			return err
		}
		written = append(written, inPath)
	}

	// The record goes last: the worker treats its appearance as the job
	// being ready, so the input must already be in place.
	if err := publish(reqPath, record); err != nil {
		for _, p := range written {
			_ = os.Remove(p)
		}
		return err
	}
	return nil
}

// PollResult performs one non-blocking check for the job's artifact. It
// reports false while the file is absent or still empty.
func (s *JobStore) PollResult(jobID string, kind domain.ResultKind) (*domain.Result, bool, error) {
	if !domain.ValidJobID(jobID) {
		return nil, false, fmt.Errorf("storage: %w: %q", domain.ErrInvalidID, jobID)
	}
	path := s.ResultPath(jobID, kind)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, &domain.StoreError{Op: "read", Path: path, Err: err}
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	return &domain.Result{JobID: jobID, Kind: kind, Data: data}, true, nil
}

// ResultPath is where the worker is expected to write the artifact.
func (s *JobStore) ResultPath(jobID string, kind domain.ResultKind) string {
	return filepath.Join(s.resultsDir, domain.ResultFileName(jobID, kind))
}

// Check verifies both directories exist and that requests can be written.
func (s *JobStore) Check() error {
	for _, dir := range []string{s.requestsDir, s.resultsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return &domain.StoreError{Op: "stat", Path: dir, Err: err}
		}
		if !info.IsDir() {
			return &domain.StoreError{Op: "stat", Path: dir, Err: errors.New("not a directory")}
		}
	}
	f, err := os.CreateTemp(s.requestsDir, ".probe-*")
	if err != nil {
		return &domain.StoreError{Op: "probe", Path: s.requestsDir, Err: err}
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// writeExclusive creates path and fails if it already exists.
func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &domain.StoreError{Op: "submit", Path: path, Err: domain.ErrJobExists}
		}
		return &domain.StoreError{Op: "create", Path: path, Err: err}
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return &domain.StoreError{Op: "write", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return &domain.StoreError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// publish makes data visible at path in one step: it is written to a hidden
// temp file and hard-linked into place, so readers never observe a partial
// record. Filesystems without hard links fall back to an exclusive create.
func publish(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &domain.StoreError{Op: "create", Path: dir, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &domain.StoreError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &domain.StoreError{Op: "write", Path: tmpName, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &domain.StoreError{Op: "chmod", Path: tmpName, Err: err}
	}

	err = os.Link(tmpName, path)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrExist):
		return &domain.StoreError{Op: "submit", Path: path, Err: domain.ErrJobExists}
	default:
		return writeExclusive(path, data)
	}
}
