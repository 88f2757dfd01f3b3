package workflow

import (
	"bundleid/internal/fileutil"
)

// Unresolved is one entry of the unresolved report. CurrentIdentifier is nil
// when the record has no identifier.
type Unresolved struct {
	Key               string   `json:"key"`
	Name              string   `json:"name"`
	CurrentIdentifier *string  `json:"currentIdentifier"`
	MethodsTried      []string `json:"methodsTried"`
}

// WriteReport persists the unresolved list in processing order. An empty run
// still writes an empty list so stale reports never linger.
func WriteReport(path string, items []Unresolved) error {
	if items == nil {
		items = []Unresolved{}
	}
	return fileutil.WriteJSONAtomic(path, items)
}
