package jobs

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jmehdipour/leadsync/internal/board"
)

type kycBucket string

const (
	kycApproved kycBucket = "APPROVED"
	kycPending  kycBucket = "PENDING"
	kycDenied   kycBucket = "DENIED"
)

var (
	approvedWords = []string{"approved", "approved_with_mismatch", "completed", "verified", "success", "ok", "pass"}
	deniedWords   = []string{"denied", "expired", "suspected", "rejected", "failed", "blocked"}

	approvedLabel = regexp.MustCompile(`approved|complete|verified|success|ok|pass`)
	pendingLabel  = regexp.MustCompile(`pending|review|await|processing|in\s*progress`)
	deniedLabel   = regexp.MustCompile(`denied|rejected|expired|failed|blocked`)
)

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// bucketOf classifies a raw CRM KYC value. Anything unrecognized is pending.
func bucketOf(raw string) kycBucket {
	v := strings.ToLower(raw)
	switch {
	case containsAny(v, approvedWords):
		return kycApproved
	case containsAny(v, deniedWords):
		return kycDenied
	default:
		return kycPending
	}
}

// statusLabels reads index -> label from a status column's settings. Both
// the list and the object form of "labels" are accepted.
func statusLabels(settings string) map[int]string {
	out := map[int]string{}
	if settings == "" {
		return out
	}
	var s struct {
		Labels json.RawMessage `json:"labels"`
	}
	if err := json.Unmarshal([]byte(settings), &s); err != nil || len(s.Labels) == 0 {
		return out
	}

	var list []*string
	if err := json.Unmarshal(s.Labels, &list); err == nil {
		for i, l := range list {
			if l != nil && *l != "" {
				out[i] = *l
			}
		}
		return out
	}

	var obj map[string]*string
	if err := json.Unmarshal(s.Labels, &obj); err == nil {
		for k, l := range obj {
			i, err := strconv.Atoi(k)
			if err == nil && l != nil && *l != "" {
				out[i] = *l
			}
		}
	}
	return out
}

func labelScore(label string, b kycBucket) int {
	l := strings.ToLower(label)
	s := 0
	switch {
	case strings.Contains(l, "100%"):
		if b == kycApproved {
			s += 3
		}
	case strings.Contains(l, "50%"):
		if b == kycPending {
			s += 3
		}
	case strings.Contains(l, "0%"):
		if b == kycDenied {
			s += 3
		}
	}
	switch b {
	case kycApproved:
		if approvedLabel.MatchString(l) {
			s += 5
		}
		if strings.Contains(l, "green") {
			s++
		}
	case kycPending:
		if pendingLabel.MatchString(l) {
			s += 5
		}
		if strings.Contains(l, "yellow") || strings.Contains(l, "orange") {
			s++
		}
	case kycDenied:
		if deniedLabel.MatchString(l) {
			s += 5
		}
		if strings.Contains(l, "red") {
			s++
		}
	}
	return s
}

// pickIndex chooses the status label that best fits the bucket. Ties go to
// the lowest index. With no positive score it falls back to the
// conventional positions, then to the lowest index, then to 0.
func pickIndex(labels map[int]string, b kycBucket) int {
	idxs := make([]int, 0, len(labels))
	for i := range labels {
		idxs = append(idxs, i)
	}
	slices.Sort(idxs)

	best, bestScore := -1, 0
	for _, i := range idxs {
		if s := labelScore(labels[i], b); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best >= 0 {
		return best
	}

	fallback := map[kycBucket]int{kycApproved: 2, kycPending: 1, kycDenied: 0}[b]
	if _, ok := labels[fallback]; ok {
		return fallback
	}
	if len(idxs) > 0 {
		return idxs[0]
	}
	return 0
}

// kycColumnIndex maps a raw KYC value onto the labels of the board's
// "KYC %" column.
func kycColumnIndex(raw string, col *board.Column) int {
	if col == nil {
		return 0
	}
	return pickIndex(statusLabels(col.SettingsStr), bucketOf(raw))
}

// kycUpdateIndex is the fixed KYC column index used by the registration
// updater.
func kycUpdateIndex(kyc string) int {
	switch strings.ToUpper(kyc) {
	case "APPROVED":
		return 1
	case "DENIED":
		return 0
	default:
		return 2
	}
}

// overallStatusIndex is the fixed overall status index, or false when the
// column should be left alone.
func overallStatusIndex(kyc string, hasStatus bool) (int, bool) {
	if hasStatus {
		return 7, true
	}
	switch strings.ToUpper(kyc) {
	case "PENDING":
		return 12, true
	case "APPROVED":
		return 13, true
	case "DENIED":
		return 3, true
	default:
		return 0, false
	}
}
