package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"adbridge/internal/domain"
)

// JobInfo summarizes one job found in the requests directory.
type JobInfo struct {
	ID          string      `json:"job_id" yaml:"job_id"`
	Mode        domain.Mode `json:"mode" yaml:"mode"`
	SubmittedAt time.Time   `json:"submitted_at" yaml:"submitted_at"`
	Done        bool        `json:"done" yaml:"done"`
	RequestPath string      `json:"request_path" yaml:"request_path"`
	InputPath   string      `json:"input_path,omitempty" yaml:"input_path,omitempty"`
	ResultPath  string      `json:"result_path,omitempty" yaml:"result_path,omitempty"`
}

// Files returns every on-disk file belonging to the job.
func (j JobInfo) Files() []string {
	files := []string{j.RequestPath}
	if j.InputPath != "" {
		files = append(files, j.InputPath)
	}
	if j.Done && j.ResultPath != "" {
		files = append(files, j.ResultPath)
	}
	return files
}

// Load reads the raw record written for a job.
func (s *JobStore) Load(jobID string) (map[string]any, error) {
	if !domain.ValidJobID(jobID) {
		return nil, fmt.Errorf("storage: %w: %q", domain.ErrInvalidID, jobID)
	}
	path := filepath.Join(s.requestsDir, domain.RequestFileName(jobID))
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: job %s: %w", jobID, domain.ErrNotFound)
		}
		return nil, &domain.StoreError{Op: "read", Path: path, Err: err}
	}
	var rec map[string]any
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &domain.StoreError{Op: "decode", Path: path, Err: err}
	}
	return rec, nil
}

// Status describes a single job.
func (s *JobStore) Status(jobID string) (JobInfo, error) {
	rec, err := s.Load(jobID)
	if err != nil {
		return JobInfo{}, err
	}
	return s.describe(jobID, rec), nil
}

// List returns every job in the requests directory ordered by id.
func (s *JobStore) List(ctx context.Context) ([]JobInfo, error) {
	entries, err := os.ReadDir(s.requestsDir)
	if err != nil {
		return nil, &domain.StoreError{Op: "list", Path: s.requestsDir, Err: err}
	}
	var jobs []JobInfo
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if !domain.ValidJobID(id) {
			continue
		}
		rec, err := s.Load(id)
		if err != nil {
			// Unreadable records are still listed so they can be pruned.
			rec = nil
		}
		jobs = append(jobs, s.describe(id, rec))
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].ID < jobs[k].ID })
	return jobs, nil
}

// Prune removes every file of jobs submitted before cutoff. With dryRun set
// nothing is deleted; the affected jobs are still returned.
func (s *JobStore) Prune(ctx context.Context, cutoff time.Time, dryRun bool) ([]JobInfo, error) {
	jobs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var pruned []JobInfo
	for _, j := range jobs {
		if j.SubmittedAt.Before(cutoff) {
			pruned = append(pruned, j)
		}
	}
	if dryRun {
		return pruned, nil
	}
	return pruned, s.Remove(pruned)
}

// Remove deletes exactly the files listed by each job's Files. Anything
// that appeared after the jobs were listed, such as a late result, is left
// alone. Files already gone are not an error.
func (s *JobStore) Remove(jobs []JobInfo) error {
	for _, j := range jobs {
		for _, p := range j.Files() {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return &domain.StoreError{Op: "remove", Path: p, Err: err}
			}
		}
	}
	return nil
}

func (s *JobStore) describe(id string, rec map[string]any) JobInfo {
	info := JobInfo{
		ID:          id,
		RequestPath: filepath.Join(s.requestsDir, domain.RequestFileName(id)),
	}
	if raw, ok := rec["mode"].(string); ok {
		if m, err := domain.ParseMode(raw); err == nil {
			info.Mode = m
		}
	} else if rec != nil {
		// Records from the first worker generation had no mode field.
		info.Mode = domain.ModeTextToImage
	}
	if raw, ok := rec["created_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			info.SubmittedAt = ts
		}
	}
	if info.SubmittedAt.IsZero() {
		if ts, ok := domain.SubmittedAt(id); ok {
			info.SubmittedAt = ts
		} else if fi, err := os.Stat(info.RequestPath); err == nil {
			info.SubmittedAt = fi.ModTime()
		}
	}
	inPath := filepath.Join(s.requestsDir, domain.InputFileName(id))
	if _, err := os.Stat(inPath); err == nil {
		info.InputPath = inPath
	}

	kinds := []domain.ResultKind{domain.ResultImage, domain.ResultJSON}
	if info.Mode != "" {
		kinds = []domain.ResultKind{info.Mode.ResultKind()}
	}
	for _, k := range kinds {
		p := s.ResultPath(id, k)
		info.ResultPath = p
		if _, err := os.Stat(p); err == nil {
			info.Done = true
			break
		}
	}
	return info
}
