package catalog

import (
	"fmt"
	"strings"
)

// Request is a structured intent to perform one cataloged action, as
// produced by the reasoning backend and not yet trusted.
type Request struct {
	Name string
	Args map[string]any

	// ToolCallID and RawArgs echo the reasoning backend's tool call so
	// the result can be threaded back into history.
	ToolCallID string
	RawArgs    string
}

// ValidationError reports every problem with a Request in one pass.
type ValidationError struct {
	Action   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request for %q: %s", e.Action, strings.Join(e.Problems, "; "))
}

// Validate checks a Request against the catalog. An unknown action name or
// any missing/mistyped parameter fails hard; every problem is collected
// before returning so the user gets one complete clarification prompt.
func (c *Catalog) Validate(req *Request) (*ActionSpec, error) {
	spec, ok := c.specs[req.Name]
	if !ok {
		return nil, &ValidationError{
			Action:   req.Name,
			Problems: []string{fmt.Sprintf("unknown action %q", req.Name)},
		}
	}

	var problems []string
	for _, p := range spec.Params {
		value, present := req.Args[p.Name]
		if !present {
			if p.Required {
				problems = append(problems, fmt.Sprintf("missing required parameter %q", p.Name))
			}
			continue
		}
		problems = append(problems, checkType(p, value)...)
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Action: req.Name, Problems: problems}
	}
	return spec, nil
}

func checkType(p Param, value any) []string {
	switch p.Type {
	case "string":
		if _, ok := value.(string); !ok {
			return []string{fmt.Sprintf("parameter %q must be a string", p.Name)}
		}
	case "object":
		nested, ok := value.(map[string]any)
		if !ok {
			return []string{fmt.Sprintf("parameter %q must be an object", p.Name)}
		}
		var problems []string
		for _, np := range p.Properties {
			nv, present := nested[np.Name]
			if !present {
				if np.Required {
					problems = append(problems, fmt.Sprintf("missing required parameter %q.%q", p.Name, np.Name))
				}
				continue
			}
			for _, problem := range checkType(np, nv) {
				problems = append(problems, fmt.Sprintf("%s (in %q)", problem, p.Name))
			}
		}
		return problems
	}
	return nil
}

// StringArg returns a string parameter, empty when absent.
func (r *Request) StringArg(name string) string {
	if v, ok := r.Args[name].(string); ok {
		return v
	}
	return ""
}

// ObjectArg returns an object parameter, nil when absent.
func (r *Request) ObjectArg(name string) map[string]any {
	if v, ok := r.Args[name].(map[string]any); ok {
		return v
	}
	return nil
}
