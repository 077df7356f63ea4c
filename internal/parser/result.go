package parser

import "github.com/pitchside/playbook/pkg/core"

// Result is the outcome of loading an external document. On failure Project
// is nil and Errors says why; Warnings lists values that were repaired.
type Result struct {
	Success  bool          `json:"success"`
	Project  *core.Project `json:"project,omitempty"`
	Errors   []string      `json:"errors"`
	Warnings []string      `json:"warnings"`
}

func failed(errs ...string) Result {
	return Result{Errors: errs, Warnings: []string{}}
}

func succeeded(p core.Project, warnings []string) Result {
	if warnings == nil {
		warnings = []string{}
	}
	return Result{Success: true, Project: &p, Errors: []string{}, Warnings: warnings}
}
