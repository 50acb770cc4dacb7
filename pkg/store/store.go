// Package store reads and writes the viewer state document: the uploaded datasets, the
// group table, force settings and free-form labels.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/umsu/umsugraph/pkg/dataset"
	"github.com/umsu/umsugraph/pkg/layout"
	"github.com/umsu/umsugraph/pkg/model"
)

// ErrDatasetNotFound is returned when an edit names a dataset the state does not hold.
var ErrDatasetNotFound = errors.New("dataset not found")

// State is the persisted viewer state.
type State struct {
	Autoload bool            `json:"autoload"`
	Data     []dataset.Entry `json:"data"`
	Groups   []model.Group   `json:"groups"`
	Forces   *layout.Forces  `json:"forces,omitempty"`
	Labels   map[string]any  `json:"labels,omitempty"`
}

// New returns an empty state with autoload enabled.
func New() *State {
	return &State{
		Autoload: true,
		Data:     make([]dataset.Entry, 0),
		Groups:   make([]model.Group, 0),
	}
}

// AddDataset appends a dataset with the highest priority so far. A dataset with the same
// name is replaced in place, keeping its position.
func (s *State) AddDataset(name string, data []byte) {
	entry := dataset.NewEntry(name, data)
	for i, e := range s.Data {
		if e.Name == name {
			s.Data[i] = entry
			return
		}
	}
	s.Data = append(s.Data, entry)
}

// RemoveDataset drops the dataset with the given name. It reports whether one was found.
func (s *State) RemoveDataset(name string) bool {
	for i, e := range s.Data {
		if e.Name == name {
			s.Data = append(s.Data[:i], s.Data[i+1:]...)
			return true
		}
	}
	return false
}

// ForcesOr returns the stored forces, or fallback when the state has none.
func (s *State) ForcesOr(fallback layout.Forces) layout.Forces {
	if s.Forces == nil {
		return fallback
	}
	return *s.Forces
}

// Load reads a state document. A missing file yields an empty state.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading state %s", path)
	}

	s := New()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, errors.Wrapf(err, "parsing state %s", path)
	}
	if s.Forces != nil {
		if err := s.Forces.Strength.Validate(); err != nil {
			return nil, errors.Wrapf(err, "state %s", path)
		}
	}
	return s, nil
}

// Save writes the state document atomically.
func Save(path string, s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding state")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing state")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "writing state")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "replacing %s", path)
	}
	return nil
}

// Update loads the state at path, applies edit and saves the result. Nothing is written
// when edit fails. A missing file starts from an empty state.
func Update(path string, edit func(*State) error) (*State, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := edit(s); err != nil {
		return nil, err
	}
	if err := Save(path, s); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadGroups reads a standalone group table (a JSON or YAML list of groups) in priority order.
func LoadGroups(path string) ([]model.Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading groups %s", path)
	}

	var groups []model.Group
	switch dataset.FormatFromPath(path) {
	case dataset.FormatJSON:
		err = json.Unmarshal(data, &groups)
	default:
		err = yaml.Unmarshal(data, &groups)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing groups %s", path)
	}
	for i, g := range groups {
		if g.Tag == "" {
			return nil, errors.Newf("groups %s: entry %d has no tag", path, i)
		}
	}
	return groups, nil
}
