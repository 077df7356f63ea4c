package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pitchside/playbook/internal/handlers"
	"gopkg.in/yaml.v3"
)

// scriptStep is one command in a script file:
//
//	- command: ENTITY:ADD
//	  args: {type: player, x: 100, y: 200}
//	  as: winger
//	- command: ENTITY:UPDATE
//	  args: {id: $winger, x: 300}
//
// A step with "as" stores the id it created; later string arguments of the
// form $name are replaced with it. Steps marked print write their result.
type scriptStep struct {
	Command string         `yaml:"command"`
	Args    map[string]any `yaml:"args"`
	As      string         `yaml:"as"`
	Print   bool           `yaml:"print"`
}

// parseScript decodes a YAML list of steps and normalizes command names.
func parseScript(raw []byte) ([]scriptStep, error) {
	var steps []scriptStep
	if err := yaml.Unmarshal(raw, &steps); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if len(steps) == 0 {
		return nil, errors.New("script has no steps")
	}
	for i := range steps {
		cmd := normalizeCommand(steps[i].Command)
		if cmd == "" {
			return nil, fmt.Errorf("step %d has no command", i+1)
		}
		steps[i].Command = cmd
	}
	return steps, nil
}

// normalizeCommand accepts "frame:add", "FRAME:ADD" or ":FRAME:ADD:".
func normalizeCommand(s string) string {
	s = strings.Trim(strings.ToUpper(strings.TrimSpace(s)), ":")
	if s == "" {
		return ""
	}
	return ":" + s + ":"
}

func (a *app) runScript(steps []scriptStep) error {
	if err := a.checkScript(steps); err != nil {
		return err
	}
	vars := map[string]string{}
	for i, step := range steps {
		var args any
		if len(step.Args) > 0 {
			args = substitute(step.Args, vars)
		}

		var result json.RawMessage
		if err := a.dispatch(step.Command, args, &result); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Command, err)
		}

		if step.As != "" {
			var created handlers.IDResult
			if err := json.Unmarshal(result, &created); err != nil || created.ID == "" {
				return fmt.Errorf("step %d (%s): no id to store as %q", i+1, step.Command, step.As)
			}
			vars[step.As] = created.ID
		}
		if step.Print {
			if err := a.printJSON(result); err != nil {
				return err
			}
		}
	}
	a.logger.Info("script finished", "steps", len(steps))
	return nil
}

// checkScript refuses a script naming a command the editor does not have,
// before any step runs.
func (a *app) checkScript(steps []scriptStep) error {
	for i, step := range steps {
		if !a.dispatcher.HasHandler(step.Command) {
			return fmt.Errorf("step %d: unknown command %s (known: %s)",
				i+1, step.Command, strings.Join(a.dispatcher.Commands(), " "))
		}
	}
	return nil
}

// substitute replaces $name strings found anywhere in v.
func substitute(v any, vars map[string]string) any {
	switch t := v.(type) {
	case string:
		if name, ok := strings.CutPrefix(t, "$"); ok {
			if id, ok := vars[name]; ok {
				return id
			}
		}
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = substitute(val, vars)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = substitute(val, vars)
		}
		return out
	default:
		return v
	}
}
