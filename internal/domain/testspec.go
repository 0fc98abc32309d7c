package domain

// Bucket is the declared expectation of a test case.
type Bucket string

const (
	BucketValid   Bucket = "valid"
	BucketInvalid Bucket = "invalid"
)

// Status is the classification of an evaluated case.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusWarning Status = "WARNING"
	StatusError   Status = "ERROR"
)

// rank orders statuses so that an outcome can only be raised, never lowered.
func (s Status) rank() int {
	switch s {
	case StatusError:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// Max returns the more severe of s and other.
func (s Status) Max(other Status) Status {
	if other.rank() > s.rank() {
		return other
	}
	return s
}

// WarningCodeFormatDivergence marks warnings generated when strict and
// lenient validation disagree because of a format assertion.
const WarningCodeFormatDivergence = "format-divergence"

// Warning is either a user-authored text or a generated entry with a code.
type Warning struct {
	Text      string
	Generated string
	Code      string
}

// IsGenerated reports whether the warning was produced by the evaluator.
func (w Warning) IsGenerated() bool { return w.Generated != "" }

// TestCase is one declared payload expectation.
type TestCase struct {
	Name         string
	Description  string
	Payload      any
	HasPayload   bool
	ParsePayload bool
	FromExamples bool
	Bucket       Bucket
	UserWarnings []string
}

// Outcome is the result of evaluating a TestCase.
type Outcome struct {
	Status            Status
	Message           string
	ValidationMessage string
	Warnings          []Warning
	// Parsed holds the payload after parse_payload decoding.
	Parsed    any
	HasParsed bool
}

// Normalize raises the status to WARNING when warnings are attached.
// An ERROR is never downgraded.
func (o Outcome) Normalize() Outcome {
	if o.Status == "" {
		o.Status = StatusSuccess
	}
	if len(o.Warnings) > 0 {
		o.Status = o.Status.Max(StatusWarning)
	}
	return o
}

// Rejection describes why a validator rejected a payload.
type Rejection struct {
	Message string
	// Formats lists the format assertions that failed, sorted.
	Formats []string
}

// Counts aggregates case outcomes.
type Counts struct {
	Success int
	Warning int
	Error   int
}

// Add records one outcome.
func (c *Counts) Add(s Status) {
	switch s {
	case StatusError:
		c.Error++
	case StatusWarning:
		c.Warning++
	default:
		c.Success++
	}
}

// Merge adds other into c.
func (c *Counts) Merge(other Counts) {
	c.Success += other.Success
	c.Warning += other.Warning
	c.Error += other.Error
}

// OutputLevel filters which evaluated cases are emitted.
type OutputLevel string

const (
	LevelAll     OutputLevel = "all"
	LevelWarning OutputLevel = "warning"
	LevelError   OutputLevel = "error"
)

// Visible reports whether a case with status s is emitted at this level.
func (l OutputLevel) Visible(s Status) bool {
	switch l {
	case LevelAll:
		return true
	case LevelError:
		return s == StatusError
	default:
		return s == StatusWarning || s == StatusError
	}
}

// ParseOutputLevel validates a user supplied level.
func ParseOutputLevel(s string) (OutputLevel, bool) {
	switch OutputLevel(s) {
	case LevelAll, LevelWarning, LevelError:
		return OutputLevel(s), true
	case "":
		return LevelWarning, true
	}
	return "", false
}
