package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/roach88/pmgate/internal/canonical"
)

// Manifest describes one stage's outputs.
type Manifest struct {
	Stage             string            `json:"stage"`
	RunID             string            `json:"run_id"`
	Parameters        any               `json:"parameters"`
	ParamsFingerprint string            `json:"params_fingerprint"`
	Artifacts         map[string]string `json:"artifacts"`
	Digests           map[string]string `json:"digests"`
	GeneratedAt       string            `json:"generated_at"`
}

// NewManifest fingerprints params and records artifacts, keyed by logical
// name. Artifacts that exist on disk also get a content digest.
func NewManifest(stage, runID string, params any, artifacts map[string]string, now time.Time) (Manifest, error) {
	fp, err := canonical.Fingerprint(canonical.DomainParams, params)
	if err != nil {
		return Manifest{}, fmt.Errorf("fingerprint %s parameters: %w", stage, err)
	}
	if artifacts == nil {
		artifacts = map[string]string{}
	}
	digests := map[string]string{}
	for name, path := range artifacts {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		digests[name] = canonical.HashWithDomain(canonical.DomainArtifact, data)
	}
	return Manifest{
		Stage:             stage,
		RunID:             runID,
		Parameters:        params,
		ParamsFingerprint: fp,
		Artifacts:         artifacts,
		Digests:           digests,
		GeneratedAt:       now.UTC().Format(time.RFC3339),
	}, nil
}

// Names returns artifact names in sorted order.
func (m Manifest) Names() []string {
	names := make([]string, 0, len(m.Artifacts))
	for name := range m.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteManifest writes m to dir/manifest.json.
func WriteManifest(dir string, m Manifest) error {
	return WriteJSON(filepath.Join(dir, ManifestJSON), m)
}

// ReadManifest loads dir/manifest.json.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	err := ReadJSON(filepath.Join(dir, ManifestJSON), &m)
	return m, err
}
