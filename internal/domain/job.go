package domain

import (
	"fmt"
	"strings"
	"time"
)

// Mode enumerates the job kinds understood by the external worker.
type Mode string

const (
	ModeTextToImage  Mode = "text-to-image"
	ModeImageToImage Mode = "image-to-image"
	ModeImageToText  Mode = "image-to-text"
	ModePrice        Mode = "price"
)

// ResultKind describes the shape of the artifact the worker writes back.
type ResultKind string

const (
	ResultImage ResultKind = "image"
	ResultJSON  ResultKind = "json"
)

// Ext returns the result file extension, including the dot.
func (k ResultKind) Ext() string {
	if k == ResultImage {
		return ".png"
	}
	return ".json"
}

// Modes lists every supported mode in a stable order.
var Modes = []Mode{ModeTextToImage, ModeImageToImage, ModeImageToText, ModePrice}

var legacyModes = map[string]Mode{
	"txt2img":  ModeTextToImage,
	"img2img":  ModeImageToImage,
	"img2text": ModeImageToText,
}

// ParseMode accepts wire names and the aliases older worker notebooks emit.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	if m, ok := legacyModes[s]; ok {
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// ResultKind reports which artifact the worker produces for the mode.
func (m Mode) ResultKind() ResultKind {
	switch m {
	case ModeTextToImage, ModeImageToImage:
		return ResultImage
	default:
		return ResultJSON
	}
}

// HasInput reports whether jobs of this mode carry a companion input image.
func (m Mode) HasInput() bool {
	return m == ModeImageToImage || m == ModeImageToText
}

// DefaultTimeout is the wait budget used when configuration does not override it.
func (m Mode) DefaultTimeout() time.Duration {
	switch m {
	case ModeTextToImage:
		return 120 * time.Second
	case ModeImageToImage:
		return 180 * time.Second
	default:
		return 60 * time.Second
	}
}

// Job is the unit of work handed to the worker. It is written once and
// never updated.
type Job struct {
	ID        string
	Mode      Mode
	CreatedAt time.Time
	// Payload holds the flat, mode specific fields (prompt, width, ...).
	Payload map[string]any
	// Input is the decoded companion image, if the mode carries one.
	Input []byte
}

// InputFileName is the companion file name for the given job id.
func InputFileName(jobID string) string {
	return jobID + "_input.png"
}

// RequestFileName is the job record file name for the given job id.
func RequestFileName(jobID string) string {
	return jobID + ".json"
}

// ResultFileName is the artifact file name the worker writes for a job.
func ResultFileName(jobID string, kind ResultKind) string {
	return jobID + kind.Ext()
}

// Record flattens the job into the JSON document stored in the requests directory.
func (j Job) Record() map[string]any {
	rec := make(map[string]any, len(j.Payload)+4)
	for k, v := range j.Payload {
		rec[k] = v
	}
	rec["job_id"] = j.ID
	rec["mode"] = string(j.Mode)
	if !j.CreatedAt.IsZero() {
		rec["created_at"] = j.CreatedAt.UTC().Format(time.RFC3339)
	}
	if len(j.Input) > 0 {
		rec["input_file"] = InputFileName(j.ID)
	}
	return rec
}

// Result is an artifact produced by the worker for a job.
type Result struct {
	JobID string
	Kind  ResultKind
	Data  []byte
}
