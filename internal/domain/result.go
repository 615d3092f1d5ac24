package domain

// Result aggregates the issues produced by one or more validators.
// Results are concatenated, never merged, so repeated codes survive.
type Result struct {
	issues []Issue
}

// NewResult wraps issues in a Result.
func NewResult(issues ...Issue) Result {
	return Result{issues: append([]Issue(nil), issues...)}
}

// Append returns a result holding r's issues followed by other's.
func (r Result) Append(other Result) Result {
	combined := make([]Issue, 0, len(r.issues)+len(other.issues))
	combined = append(combined, r.issues...)
	combined = append(combined, other.issues...)
	return Result{issues: combined}
}

// Issues returns a copy of every issue in order.
func (r Result) Issues() []Issue {
	return append([]Issue(nil), r.issues...)
}

// IsValid is true when no issue is fatal or error.
func (r Result) IsValid() bool {
	for _, issue := range r.issues {
		if issue.Severity.Rank() >= SeverityError.Rank() {
			return false
		}
	}
	return true
}

// IsFatal is true when at least one issue is fatal.
func (r Result) IsFatal() bool {
	for _, issue := range r.issues {
		if issue.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

func (r Result) HasIssues() bool {
	return len(r.issues) > 0
}

// BySeverity returns issues with the given severity.
func (r Result) BySeverity(severity Severity) []Issue {
	var out []Issue
	for _, issue := range r.issues {
		if issue.Severity == severity {
			out = append(out, issue)
		}
	}
	return out
}

// ByCategory returns issues in the given category.
func (r Result) ByCategory(category Category) []Issue {
	var out []Issue
	for _, issue := range r.issues {
		if issue.Category == category {
			out = append(out, issue)
		}
	}
	return out
}

// FailureReason returns the message of the most severe issue, preferring
// the earliest among equals. Empty when there are no issues.
func (r Result) FailureReason() string {
	best := -1
	for i, issue := range r.issues {
		if best == -1 || issue.Severity.Rank() > r.issues[best].Severity.Rank() {
			best = i
		}
	}
	if best == -1 {
		return ""
	}
	return r.issues[best].Message
}
