// Package logsink implements the per-deployment logging component (C1): a
// dedicated text log file per deployment, written to alongside the
// application's structured slog output. Grounded on the original
// control plane's pipeline logger, which wrote simultaneously to both
// destinations so operators have one place (the structured logger) for
// cross-deployment queries and another (the per-deployment file) for a
// clean, linear transcript of exactly one deployment's pipeline run.
package logsink

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// maxErrorMessageLength bounds how much of a failure's error text is
// persisted to the deployments.error_message column, per the error
// handling design's truncation rule: full detail always stays in the log
// file, the database only needs enough to summarize the failure in a list
// view.
const maxErrorMessageLength = 500

// Open creates (or appends to) the log file for deploymentID under root,
// creating root if necessary. Appending rather than truncating means a
// redeploy's log is additive, preserving the deployment's full history in
// one file.
func Open(root string, deploymentID string) (*os.File, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %q: %w", root, err)
	}
	path := filepath.Join(root, deploymentID+".log")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open deployment log file %q: %w", path, err)
	}
	return file, nil
}

// PathFor returns the log file path Open would use, without opening it —
// needed so the orchestrator can persist LogFilePath to the database before
// the pipeline itself ever writes to the file.
func PathFor(root string, deploymentID string) string {
	return filepath.Join(root, deploymentID+".log")
}

// Sink writes simultaneously to the application's structured logger and a
// deployment-specific log file. Safe to use with a nil file (writes to the
// structured logger only), so a failure to open the log file never blocks
// the rest of the pipeline.
type Sink struct {
	appLogger    *slog.Logger
	file         *os.File
	deploymentID string
}

// New constructs a Sink. file may be nil.
func New(appLogger *slog.Logger, file *os.File, deploymentID string) *Sink {
	return &Sink{appLogger: appLogger, file: file, deploymentID: deploymentID}
}

// Writer exposes the log file as a plain io.Writer for handing to
// gitfetch.Clone / docker.BuildImage / docker.RunArtifactExtractor's
// LogWriter parameters. Falls back to io.Discard if no file is open.
func (s *Sink) Writer() io.Writer {
	if s.file == nil {
		return io.Discard
	}
	return s.file
}

// Infof logs a line to both destinations.
func (s *Sink) Infof(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	s.appLogger.Info("deployment pipeline", "deployment_id", s.deploymentID, "msg", message)
	s.writeLine(message)
}

// Errorf logs a failure line to both destinations.
func (s *Sink) Errorf(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	s.appLogger.Error("deployment pipeline", "deployment_id", s.deploymentID, "msg", message)
	s.writeLine("FAILED: " + message)
}

func (s *Sink) writeLine(message string) {
	if s.file == nil {
		return
	}
	line := fmt.Sprintf("[%s] %s\n", timestamp(), message)
	s.file.WriteString(line)
}

// Close closes the underlying log file, if one is open.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// Section is one framed phase of a deployment's transcript: a pipeline
// step (clone, build, extract, start, proxy) opens one, writes its
// progress and child-process output through it, then closes it. The
// opening and closing lines bracket the phase with `--- <name> Started ---`
// / `--- <name> Finished|Failed ---` markers so a human reading the log
// file can see exactly where one step ends and the next begins.
type Section struct {
	sink   *Sink
	name   string
	failed bool
}

// OpenSection starts a new framed phase named name.
func (s *Sink) OpenSection(name string) *Section {
	s.writeLine(fmt.Sprintf("--- %s Started: %s ---", name, timestamp()))
	return &Section{sink: s, name: name}
}

// Writer exposes the section's underlying file as an io.Writer, for handing
// to a child process's stdout/stderr tee.
func (sec *Section) Writer() io.Writer {
	return sec.sink.Writer()
}

// Infof logs a line within this section's frame.
func (sec *Section) Infof(format string, args ...any) {
	sec.sink.Infof(format, args...)
}

// Fail marks the section as having failed, so Close writes a "Failed"
// marker instead of "Finished".
func (sec *Section) Fail() {
	sec.failed = true
}

// Close writes the section's closing marker.
func (sec *Section) Close() {
	status := "Finished"
	if sec.failed {
		status = "Failed"
	}
	sec.sink.writeLine(fmt.Sprintf("--- %s %s: %s ---", sec.name, status, timestamp()))
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// TruncateErrorMessage clips err's message to maxErrorMessageLength runes
// for storage in deployments.error_message. The full text is always
// available in the deployment's log file via Errorf.
func TruncateErrorMessage(err error) string {
	message := err.Error()
	runes := []rune(message)
	if len(runes) <= maxErrorMessageLength {
		return message
	}
	return string(runes[:maxErrorMessageLength]) + "... (truncated, see deployment log)"
}
