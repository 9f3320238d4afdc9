package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// jsonOutput is bound to the global --json flag.
var jsonOutput bool

// Response is the envelope every command prints under --json. Exactly one
// of Data and Error is set.
type Response struct {
	OK       bool       `json:"ok"`
	Data     any        `json:"data,omitempty"`
	Error    *ErrorInfo `json:"error,omitempty"`
	Warnings []Warning  `json:"warnings,omitempty"`
	Meta     *Meta      `json:"meta,omitempty"`
}

// ErrorInfo describes a failed command. Code is one of the Err* constants.
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Warning is a non-fatal finding. Ref names the variable or placeholder it
// concerns.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Ref     string `json:"ref,omitempty"`
}

// Meta carries counts and timings.
type Meta struct {
	Count       int   `json:"count,omitempty"`
	QueryTimeMs int64 `json:"query_time_ms,omitempty"`
}

func isJSONOutput() bool {
	return jsonOutput
}

// writeResponse prints resp to stdout. Prompts routinely contain <, > and &,
// so HTML escaping stays off.
func writeResponse(resp Response) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	_ = enc.Encode(resp)
}

func outputSuccess(data any, meta *Meta, warnings ...Warning) {
	writeResponse(Response{OK: true, Data: data, Warnings: warnings, Meta: meta})
}

// handleError reports err under code. In JSON mode the failure is printed as
// an envelope and nil is returned so cobra stays quiet; otherwise err comes
// back with the suggestion appended.
func handleError(code string, err error, suggestion string) error {
	if !jsonOutput {
		if suggestion == "" {
			return err
		}
		return fmt.Errorf("%w\n\n%s", err, suggestion)
	}
	writeResponse(Response{Error: &ErrorInfo{Code: code, Message: err.Error(), Suggestion: suggestion}})
	return nil
}

func handleErrorMsg(code, message, suggestion string) error {
	return handleError(code, errors.New(message), suggestion)
}
