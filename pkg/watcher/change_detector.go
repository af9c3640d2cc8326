package watcher

import "slices"

// ChangeAnalysis describes what changed and what the reactor needs to redo
type ChangeAnalysis struct {
	// NeedRediscovery means the input POM files must be searched again
	NeedRediscovery bool
	ChangedFiles    []string
}

// AnalyzeChanges determines what a change requires. Any change rebuilds the
// reactor, structural changes also redo POM discovery. Cached models are
// keyed by file contents and never need a reset.
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{
		ChangedFiles: slices.Compact(slices.Sorted(slices.Values(event.Paths))),
	}
	if event.Type == ChangeTypeStructure {
		analysis.NeedRediscovery = true
	}
	return analysis
}
