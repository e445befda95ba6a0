package debug

import (
	"encoding/json"
	"fmt"
	"os"
)

// Logf writes a formatted debug line to stderr.
//
// Composite arguments decoded from JSON (maps, slices, json.Number) are
// rendered indented; values implementing fmt.Stringer, such as *ir.Node,
// are rendered with their String method.
func Logf(msg string, args ...any) {
	for i := range args {
		a := args[i]
		switch x := a.(type) {
		case map[string]any, []any, json.Number:
			d, err := json.MarshalIndent(a, "   |", "  ")
			if err != nil {
				args[i] = fmt.Sprintf("%v", a)
				continue
			}
			args[i] = string(d)
		case []byte:
			args[i] = fmt.Sprintf("%q", x)
		case fmt.Stringer:
			if x == nil {
				continue
			}
			args[i] = x.String()
		case bool, string, float64, int:

		default:
		}
	}
	fmt.Fprintf(os.Stderr, msg, args...)
}
