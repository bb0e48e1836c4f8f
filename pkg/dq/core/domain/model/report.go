package model

// Severity classifies an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// IsValid checks whether the Severity is one of the declared variants.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeverityInfo:
		return true
	default:
		return false
	}
}

// Issue is one reported data-quality finding, tied to a record and field.
// Issues are immutable once produced.
type Issue struct {
	RuleID   string
	RecordID string
	Field    string
	Severity Severity
	Message  string
}

// ValidationReport aggregates the ordered issues of one evaluation pass or
// cleansing stage over a batch.
type ValidationReport struct {
	BatchID     string
	StageName   string
	RecordCount int
	Issues      []Issue

	counts map[Severity]int
}

// NewValidationReport creates an empty report for the given batch and stage.
func NewValidationReport(batchID, stageName string, recordCount int) *ValidationReport {
	return &ValidationReport{
		BatchID:     batchID,
		StageName:   stageName,
		RecordCount: recordCount,
		Issues:      make([]Issue, 0),
		counts:      make(map[Severity]int),
	}
}

// Append adds an issue, maintaining per-severity counts.
func (r *ValidationReport) Append(issue Issue) {
	r.Issues = append(r.Issues, issue)
	if r.counts == nil {
		r.counts = make(map[Severity]int)
	}
	r.counts[issue.Severity]++
}

// AppendAll adds a slice of issues in order.
func (r *ValidationReport) AppendAll(issues []Issue) {
	for _, issue := range issues {
		r.Append(issue)
	}
}

// Count returns the number of issues with the given severity.
func (r *ValidationReport) Count(severity Severity) int {
	return r.counts[severity]
}

// ErrorRate returns error issues per record.
func (r *ValidationReport) ErrorRate() float64 {
	return r.rate(SeverityError)
}

// WarningRate returns warning issues per record.
func (r *ValidationReport) WarningRate() float64 {
	return r.rate(SeverityWarning)
}

func (r *ValidationReport) rate(severity Severity) float64 {
	if r.RecordCount == 0 {
		return 0
	}
	return float64(r.counts[severity]) / float64(r.RecordCount)
}

// DictionaryEntry documents one field of the final batch.
type DictionaryEntry struct {
	Field       string
	Type        FieldType
	NonNull     int
	Null        int
	NullRate    float64
	Cardinality int
	Samples     []string
	Min         *float64
	Max         *float64
}

// QualityMetrics summarizes the end-to-end quality improvement of a run,
// comparing the pre-check validation pass against the post-check pass.
type QualityMetrics struct {
	RecordsIn        int
	RecordsOut       int
	InitialErrorRate float64
	FinalErrorRate   float64
	ErrorReduction   float64
}

// Report is the end-to-end report handed back with the final batch: the
// ordered per-stage reports, the concatenated issue list, per-stage metrics,
// the data dictionary, and quality metrics. For Aborted runs AbortReason
// explains the threshold breach; for Failed runs FaultDetail carries the
// fault attached at the stage boundary.
type Report struct {
	RunID        string
	BatchID      string
	Status       RunStatus
	StageReports []*ValidationReport
	Stages       []*StageExecution
	Dictionary   []DictionaryEntry
	Quality      QualityMetrics
	AbortReason  string
	FaultDetail  string
}

// AllIssues returns the concatenated issue list in stage order.
func (r *Report) AllIssues() []Issue {
	var issues []Issue
	for _, sr := range r.StageReports {
		issues = append(issues, sr.Issues...)
	}
	return issues
}

// Count returns the total number of issues with the given severity across
// all stage reports.
func (r *Report) Count(severity Severity) int {
	total := 0
	for _, sr := range r.StageReports {
		total += sr.Count(severity)
	}
	return total
}
