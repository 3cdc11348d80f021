// Package report defines the JSON protocol between the quadapp binary and the
// automation that invokes it.
//
// Every command writes exactly one Response envelope to stdout; logs go to
// stderr. The invoker switches on Success and, for failures, on the error code,
// which mirrors the process exit code classes.
//
// This package contains pure types with no I/O.
package report

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// Response Envelope
// =============================================================================

// Response is the standard envelope for all command responses.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

// ErrorInfo contains error details when Success is false.
type ErrorInfo struct {
	Command string `json:"command"`           // Command that failed
	Code    string `json:"code,omitempty"`    // Failure class (e.g. "layout")
	Message string `json:"message"`           // Human-readable error message
	Details string `json:"details,omitempty"` // Underlying cause, if any
}

// NewSuccessResponse creates a successful response with data.
func NewSuccessResponse(data interface{}) (*Response, error) {
	var rawData json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal data: %w", err)
		}
		rawData = bytes
	}
	return &Response{
		Success: true,
		Data:    rawData,
	}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(command, code, message string) *Response {
	return &Response{
		Success: false,
		Error: &ErrorInfo{
			Command: command,
			Code:    code,
			Message: message,
		},
	}
}

// ParseResponse parses a JSON response emitted by the binary.
func ParseResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &resp, nil
}

// UnmarshalData unmarshals the response data into the target type.
func (r *Response) UnmarshalData(target interface{}) error {
	if r.Data == nil {
		return nil
	}
	return json.Unmarshal(r.Data, target)
}

// =============================================================================
// Error Codes
// =============================================================================

// Failure class codes. One per engine failure class plus the two boundary
// classes (config/usage, state store).
const (
	ErrCodeConfig     = "config"
	ErrCodeLayout     = "layout"
	ErrCodeTemplate   = "template"
	ErrCodePreprocess = "preprocess"
	ErrCodeDependency = "dependency"
	ErrCodeService    = "service"
	ErrCodeStore      = "store"
	ErrCodeInternal   = "internal"
)

// =============================================================================
// Command Result Types
// =============================================================================

// DeployResult is returned by the "deploy" command.
type DeployResult struct {
	Application  string   `json:"application"`
	ServiceName  string   `json:"service_name"`
	State        string   `json:"state"`
	RunID        string   `json:"run_id"`
	Changed      bool     `json:"changed"`
	FirstDeploy  bool     `json:"first_deploy"`
	QuadletFiles []string `json:"quadlet_files"`           // deployed unit file names
	DataFiles    []string `json:"data_files,omitempty"`    // deployed auxiliary paths, app-relative
	ChangedFiles []string `json:"changed_files,omitempty"` // absolute destination paths written this run
	Restarted    []string `json:"restarted,omitempty"`     // services restarted, in order
	Started      []string `json:"started,omitempty"`       // services started
	Message      string   `json:"msg"`
}

// RenderedFile is one entry of a RenderResult.
type RenderedFile struct {
	Path    string `json:"path"` // destination path the deploy would write
	Mode    string `json:"mode"` // octal, e.g. "0644"
	Content string `json:"content"`
}

// RenderResult is returned by the "render" command.
type RenderResult struct {
	Application string         `json:"application"`
	ServiceName string         `json:"service_name"`
	Files       []RenderedFile `json:"files"`
	Variables   []string       `json:"variables,omitempty"` // placeholders the sources reference
}

// SealResult is returned by the "seal" command.
type SealResult struct {
	Sealed string `json:"sealed"` // enc:<base64> value for a variables file
}

// VersionInfo is returned by the "version" command.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}
