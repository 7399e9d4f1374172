package report

// Status is the review state of a report. The backend owns the set of values;
// anything outside the documented three is kept verbatim and treated as unknown.
type Status string

const (
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
)

// FilterAll is the list filter sentinel meaning "no status filter".
const FilterAll = "all"

func (s Status) Known() bool {
	switch s {
	case StatusPendingReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func (s Status) Emoji() string {
	switch s {
	case StatusPendingReview:
		return "⏳"
	case StatusApproved:
		return "✅"
	case StatusRejected:
		return "❌"
	default:
		return "❓"
	}
}

func (s Status) String() string { return string(s) }
