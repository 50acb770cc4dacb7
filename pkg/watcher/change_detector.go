package watcher

// ChangeAnalysis describes what changed and which steps need to be re-run
type ChangeAnalysis struct {
	NeedStateReload bool // Re-read the state document (datasets, groups and forces may all change)
	NeedGroups      bool // Re-read the group table; only styling and strengths change
	NeedMerge       bool // Re-decode datasets and re-merge
	ChangedFiles    []string
}

// AnalyzeChanges determines which steps need to be re-run based on what changed
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{
		ChangedFiles: event.Paths,
	}

	switch event.Type {
	case ChangeTypeState:
		analysis.NeedStateReload = true
		analysis.NeedGroups = true
		analysis.NeedMerge = true

	case ChangeTypeGroups:
		analysis.NeedGroups = true

	case ChangeTypeDataset:
		analysis.NeedMerge = true
	}

	return analysis
}

// Reason is a short description of the change for status messages.
func (a *ChangeAnalysis) Reason() string {
	switch {
	case a.NeedStateReload:
		return "state changed"
	case a.NeedMerge:
		return "dataset changed"
	case a.NeedGroups:
		return "groups changed"
	}
	return "no change"
}
