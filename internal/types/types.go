package types

// Report model ---------------------------------------------------------------

// PatternFinding is one structural pattern discovered in a source file.
// Currently the only pattern type is "class".
type PatternFinding struct {
	Type    string   `json:"type"`
	Name    string   `json:"name"`
	Methods []string `json:"methods"`
}

// Warning records a per-file failure that did not abort the analysis.
type Warning struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"` // "parse" or "read"
	Message string `json:"message"`
}

// AnalysisReport is the aggregated output of one full-tree analysis.
// It is built by a single walk and never mutated afterwards.
//
// Dependencies keys and files contributing to Patterns are exactly the
// files classified as source code; Documentation keys are exactly the
// files classified as documentation. Structure is reserved and always
// serialized as an empty object.
type AnalysisReport struct {
	Dependencies  map[string][]string `json:"dependencies"`
	Patterns      []PatternFinding    `json:"patterns"`
	Documentation map[string]string   `json:"documentation"`
	Structure     map[string]any      `json:"structure"`
	Warnings      []Warning           `json:"warnings,omitempty"`
	// Partial is set when the walk was cancelled before visiting every file.
	Partial bool `json:"partial,omitempty"`
}

// NewAnalysisReport returns a report with all maps allocated so that empty
// results serialize as {} rather than null.
func NewAnalysisReport() *AnalysisReport {
	return &AnalysisReport{
		Dependencies:  map[string][]string{},
		Patterns:      []PatternFinding{},
		Documentation: map[string]string{},
		Structure:     map[string]any{},
	}
}

// ClassPattern builds a "class" PatternFinding. Methods keep declaration
// order, duplicates included. An anonymous class has name "".
func ClassPattern(name string, methods []string) PatternFinding {
	if methods == nil {
		methods = []string{}
	}
	return PatternFinding{Type: "class", Name: name, Methods: methods}
}
