package display

import (
	"encoding/json"
	"os"
)

// MarshalJSON marshals JSON with pretty formatting for terminals and
// compact formatting when stdout is a pipe, so CI log processors get one
// document per line.
func MarshalJSON(v interface{}) ([]byte, error) {
	if compactOutput() {
		return json.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}

// compactOutput is overridden in tests
var compactOutput = func() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice == 0
}
