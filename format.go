package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// statusf prints a status message to w unless quiet mode is set.
func statusf(w io.Writer, quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Err, cc.Flags.Quiet, format, args...)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// printRawJSON pretty-prints a JSON document, falling back to the raw bytes
// when it is not valid JSON.
func printRawJSON(w io.Writer, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	return printJSON(w, v)
}

// formatExpiry describes a token expiry relative to now.
func formatExpiry(exp, now time.Time) string {
	d := exp.Sub(now).Round(time.Second)
	stamp := exp.Local().Format(time.RFC3339)

	if d <= 0 {
		return fmt.Sprintf("%s (expired %s ago)", stamp, -d)
	}

	return fmt.Sprintf("%s (in %s)", stamp, d)
}
