package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/ui"
)

// printJSON writes v indented to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printFeedback writes the server feedback to stderr and fails when it
// carries errors.
func printFeedback(f model.Feedback) error {
	ui.WriteFeedback(os.Stderr, f)
	if f.HasErrors() {
		return fmt.Errorf("%d error(s) reported", len(f.Messages(model.SeverityError)))
	}
	return nil
}

// parseID turns a command-line id into a JSON-friendly value: integers stay
// numeric, anything else is sent as a string.
func parseID(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// parseIDs splits comma separated and repeated id arguments.
func parseIDs(args []string) []any {
	var ids []any
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			if part = strings.TrimSpace(part); part != "" {
				ids = append(ids, parseID(part))
			}
		}
	}
	return ids
}

// parseObject decodes a JSON object argument.
func parseObject(s string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("invalid JSON object %q: %w", s, err)
	}
	return m, nil
}

// parseObjects decodes each argument as a JSON object.
func parseObjects(args []string) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(args))
	for _, a := range args {
		m, err := parseObject(a)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// parseIndex parses a column or row index argument.
func parseIndex(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, s)
	}
	return n, nil
}
