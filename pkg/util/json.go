package util

import (
	"encoding/json"
	"fmt"
	"os"
)

// PrintPrettyJSON writes v to stdout as indented JSON.
func PrintPrettyJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// PrintPrettyJSONSlice prints items as a JSON array. A nil or empty slice
// prints as [] rather than null.
func PrintPrettyJSONSlice[T any](items []T) error {
	if len(items) == 0 {
		fmt.Fprintln(os.Stdout, "[]")
		return nil
	}
	return PrintPrettyJSON(items)
}
