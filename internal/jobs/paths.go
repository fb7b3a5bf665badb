package jobs

import "path/filepath"

// Artifact and dataset file names.
const (
	EventModelFile      = "event_model.json"
	ClusterModelFile    = "student_cluster_model.json"
	FeatureListFile     = "student_features.txt"
	EventDatasetFile    = "event_dataset.csv"
	EventUpdatesFile    = "updated_event_dataset.csv"
	CleanedEventsFile   = "cleaned_event_dataset.csv"
	CleanedMetadataFile = "cleaned_metadata.json"
	StudentExportFile   = "student_ml_data.csv"
	StudentFeaturesFile = "student_features.csv"
)

// Paths locates every file the jobs read or write.
type Paths struct {
	EventModel      string
	ClusterModel    string
	FeatureList     string
	EventDataset    string
	EventUpdates    string
	CleanedEvents   string
	CleanedMetadata string
	StudentExport   string
	StudentFeatures string
}

// DefaultPaths keeps trained models and the feature list under mlDir and the
// CSV/JSON datasets under dataDir.
func DefaultPaths(mlDir, dataDir string) Paths {
	return Paths{
		EventModel:      filepath.Join(mlDir, EventModelFile),
		ClusterModel:    filepath.Join(mlDir, ClusterModelFile),
		FeatureList:     filepath.Join(mlDir, FeatureListFile),
		EventDataset:    filepath.Join(dataDir, EventDatasetFile),
		EventUpdates:    filepath.Join(dataDir, EventUpdatesFile),
		CleanedEvents:   filepath.Join(dataDir, CleanedEventsFile),
		CleanedMetadata: filepath.Join(dataDir, CleanedMetadataFile),
		StudentExport:   filepath.Join(dataDir, StudentExportFile),
		StudentFeatures: filepath.Join(dataDir, StudentFeaturesFile),
	}
}

// dirs returns the directories Paths writes into.
func (p Paths) dirs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range []string{p.EventModel, p.ClusterModel, p.FeatureList, p.EventDataset, p.EventUpdates,
		p.CleanedEvents, p.CleanedMetadata, p.StudentExport, p.StudentFeatures} {
		d := filepath.Dir(f)
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}
