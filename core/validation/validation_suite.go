package validation

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"ideobatch/core"
)

// ValidationStep represents a single validation step with its status.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// StepStatus represents the status of a validation step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the string representation of a step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SuiteResult represents the complete result of validation suite execution.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

// stepOutcome is what a check function reports back to runStep.
type stepOutcome struct {
	status  StepStatus
	message string
	err     error
}

func passed(msg string) stepOutcome  { return stepOutcome{status: StepPassed, message: msg} }
func warned(msg string) stepOutcome  { return stepOutcome{status: StepWarning, message: msg} }
func skipped(msg string) stepOutcome { return stepOutcome{status: StepSkipped, message: msg} }

func failed(msg string, err error) stepOutcome {
	return stepOutcome{status: StepFailed, message: msg, err: err}
}

// ValidationSuite runs the pre-flight checks for a batch run: credentials,
// writable output folders, a readable prompts file and optional features.
// Nothing here calls the network; a bad key surfaces on the first request.
type ValidationSuite struct {
	output       io.Writer
	settings     *core.Settings
	showProgress bool
	failFast     bool
}

// NewValidationSuite creates a suite over already-loaded settings.
func NewValidationSuite(settings *core.Settings) *ValidationSuite {
	return &ValidationSuite{
		output:       os.Stdout,
		settings:     settings,
		showProgress: true,
	}
}

// WithOutput sets the output writer for progress messages.
func (s *ValidationSuite) WithOutput(w io.Writer) *ValidationSuite {
	s.output = w
	return s
}

// WithShowProgress enables or disables progress output.
func (s *ValidationSuite) WithShowProgress(show bool) *ValidationSuite {
	s.showProgress = show
	return s
}

// WithFailFast stops validation on first failure if enabled.
func (s *ValidationSuite) WithFailFast(failFast bool) *ValidationSuite {
	s.failFast = failFast
	return s
}

// Validate runs all checks in sequence with progress output.
func (s *ValidationSuite) Validate() SuiteResult {
	startTime := time.Now()

	if s.showProgress {
		s.printHeader("Ideogram Batch Pre-flight")
	}

	checks := []struct {
		name string
		fn   func() stepOutcome
	}{
		{"Ideogram API Key", s.checkAPIKey},
		{"Prompts File", s.checkPromptsFile},
		{"Image Folder", s.checkImageFolder},
		{"Annotated Folder", s.checkAnnotatedFolder},
		{"Request Log", s.checkRequestLog},
		{"Concurrency", s.checkConcurrency},
		{"Prompt Rewriting", s.checkRewrite},
		{"Object Storage Mirror", s.checkS3},
	}

	steps := make([]ValidationStep, 0, len(checks))
	for _, check := range checks {
		step := s.runStep(check.name, check.fn)
		steps = append(steps, step)
		if s.failFast && step.Status == StepFailed {
			break
		}
	}

	result := s.buildResult(steps, startTime)
	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

func (s *ValidationSuite) checkAPIKey() stepOutcome {
	key := strings.TrimSpace(s.settings.IdeogramAPIKey)
	if key == "" {
		return failed("not configured", core.ErrMissingAuth("ideogram"))
	}
	return passed(maskKey(key))
}

func (s *ValidationSuite) checkPromptsFile() stepOutcome {
	path := s.settings.LoadPromptsFrom
	if err := CheckFileExists(path); err != nil {
		return failed(path, err)
	}
	if err := CheckFileReadable(path); err != nil {
		return failed(path, err)
	}
	return passed(path)
}

func (s *ValidationSuite) checkImageFolder() stepOutcome {
	dir := s.settings.ImageDownloadFolder
	if !s.settings.SaveRawImage && !s.settings.SaveJSONLog {
		return skipped("raw image and JSON saving disabled")
	}
	if err := CheckDirWritable(dir); err != nil {
		return failed(dir, err)
	}
	return passed(dir)
}

func (s *ValidationSuite) checkAnnotatedFolder() stepOutcome {
	if !s.settings.SaveAnnotatedImage {
		return skipped("annotated saving disabled")
	}
	dir := s.settings.AnnotatedFolder()
	if err := CheckDirWritable(dir); err != nil {
		return failed(dir, err)
	}
	return passed(dir)
}

func (s *ValidationSuite) checkRequestLog() stepOutcome {
	if !s.settings.EnableLogging {
		return skipped("request logging disabled")
	}
	path := s.settings.LogFilePath
	if err := CheckFileAppendable(path); err != nil {
		return failed(path, err)
	}
	return passed(path)
}

func (s *ValidationSuite) checkConcurrency() stepOutcome {
	n := s.settings.MaxConcurrent
	if n < 1 {
		return failed(fmt.Sprintf("%d", n), core.ErrInvalidValue("MAX_CONCURRENT", fmt.Sprintf("%d", n), "must be at least 1"))
	}
	if n > 10 {
		return warned(fmt.Sprintf("%d concurrent requests may hit the rate limit", n))
	}
	return passed(fmt.Sprintf("%d concurrent requests", n))
}

func (s *ValidationSuite) checkRewrite() stepOutcome {
	if !s.settings.RewritePrompts {
		return skipped("disabled")
	}
	switch {
	case s.settings.OpenAIAPIKey != "":
		return passed("OpenAI " + s.settings.RewriteModel)
	case s.settings.GeminiAPIKey != "":
		return passed("Gemini " + s.settings.GeminiModel)
	default:
		return failed("no LLM key", core.ErrMissingAuth("rewrite"))
	}
}

func (s *ValidationSuite) checkS3() stepOutcome {
	s3 := s.settings.S3
	if !s3.Enabled() {
		return skipped("not configured")
	}
	if s3.AccessKey == "" || s3.SecretKey == "" {
		return warned(fmt.Sprintf("%s/%s without credentials", s3.Endpoint, s3.Bucket))
	}
	return passed(fmt.Sprintf("%s/%s", s3.Endpoint, s3.Bucket))
}

// maskKey keeps the last four characters of a credential.
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// runStep executes a validation step with timing and progress output.
func (s *ValidationSuite) runStep(name string, fn func() stepOutcome) ValidationStep {
	if s.showProgress {
		s.printStepStart(name)
	}

	startTime := time.Now()
	outcome := fn()
	step := ValidationStep{
		Name:    name,
		Status:  outcome.status,
		Message: outcome.message,
		Error:   outcome.err,
		Latency: time.Since(startTime),
	}

	if s.showProgress {
		s.printStep(step)
	}
	return step
}

// buildResult creates a SuiteResult from completed steps.
func (s *ValidationSuite) buildResult(steps []ValidationStep, startTime time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(startTime),
		Success:    true,
	}

	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}

	return result
}

func (s *ValidationSuite) printHeader(title string) {
	fmt.Fprintln(s.output)
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

func (s *ValidationSuite) printStepStart(name string) {
	fmt.Fprintf(s.output, "  ◌ %s...", name)
}

// printStep prints a completed validation step with status indicator.
func (s *ValidationSuite) printStep(step ValidationStep) {
	var icon string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		icon, clr = "✓", color.New(color.FgGreen)
	case StepFailed:
		icon, clr = "✗", color.New(color.FgRed)
	case StepWarning:
		icon, clr = "!", color.New(color.FgYellow)
	case StepSkipped:
		icon, clr = "○", color.New(color.FgHiBlack)
	default:
		icon, clr = "?", color.New(color.FgWhite)
	}

	fmt.Fprintf(s.output, "\r")
	clr.Fprintf(s.output, "  %s %s", icon, step.Name)
	if step.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if step.Status == StepFailed && step.Error != nil {
		color.New(color.FgRed).Fprintf(s.output, "    └─ %s\n", step.Error.Error())
	}
}

func (s *ValidationSuite) printSummary(result SuiteResult) {
	fmt.Fprintln(s.output)

	if result.Success {
		successColor := color.New(color.FgGreen, color.Bold)
		successColor.Fprintf(s.output, "━━━ Ready ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d/%d checks passed, %d warnings)",
			result.PassedSteps, result.TotalSteps, result.Warnings)
		successColor.Fprintln(s.output, " ━━━")
	} else {
		failColor := color.New(color.FgRed, color.Bold)
		failColor.Fprintf(s.output, "━━━ Not Ready ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d passed, %d failed)",
			result.PassedSteps, result.FailedSteps)
		failColor.Fprintln(s.output, " ━━━")
	}

	fmt.Fprintln(s.output)
}

// GetFirstError returns the first error from failed steps, or nil if all passed.
func (r SuiteResult) GetFirstError() error {
	for _, step := range r.Steps {
		if step.Error != nil {
			return step.Error
		}
	}
	return nil
}

// Summary returns a human-readable summary string.
func (r SuiteResult) Summary() string {
	var sb strings.Builder
	status := "Failed"
	if r.Success {
		status = "Passed"
	}
	fmt.Fprintf(&sb, "Validation %s: %d/%d checks passed", status, r.PassedSteps, r.TotalSteps)
	if r.FailedSteps > 0 {
		fmt.Fprintf(&sb, ", %d failed", r.FailedSteps)
	}
	if r.Warnings > 0 {
		fmt.Fprintf(&sb, ", %d warnings", r.Warnings)
	}
	return sb.String()
}
