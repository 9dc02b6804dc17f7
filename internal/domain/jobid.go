package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewJobID builds "<unix-millis>-<8 hex>". The millisecond prefix keeps ids
// ordered by submission time; the suffix separates jobs submitted within the
// same millisecond.
func NewJobID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + suffix
}

// ValidJobID rejects ids that could escape the job directories.
func ValidJobID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	if strings.Contains(id, "..") {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

// SubmittedAt recovers the submission time encoded in an id produced by
// NewJobID (or the bare millisecond ids older deployments used).
func SubmittedAt(id string) (time.Time, bool) {
	prefix, _, _ := strings.Cut(id, "-")
	ms, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
