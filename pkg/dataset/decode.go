// Package dataset decodes uploaded dataset blobs into fragments ready for merging.
//
// Datasets are JSON or YAML documents shaped {nodes: [...], links: [...]}. The viewer's
// saved state stores them base64-encoded next to a display name; Entry handles that form.
// A blob that fails to decode is reported to the caller and never handed to the merger.
package dataset

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/umsu/umsugraph/pkg/model"
)

// Format selects the document syntax of a blob.
type Format int

const (
	FormatAuto Format = iota
	FormatJSON
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	}
	return "auto"
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatAuto
}

// ErrDecode marks every decoding failure.
var ErrDecode = errors.New("dataset decode failed")

// Decode parses a blob into a fragment. The returned fragment may still be malformed
// (missing nodes or links); that is the merger's call.
func Decode(data []byte, format Format) (model.Fragment, error) {
	if format == FormatAuto {
		format = sniff(data)
	}

	var fragment model.Fragment
	switch format {
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return model.Fragment{}, errors.Mark(errors.Wrap(err, "parsing yaml"), ErrDecode)
		}
		normalised, err := json.Marshal(normaliseYAML(doc))
		if err != nil {
			return model.Fragment{}, errors.Mark(errors.Wrap(err, "converting yaml"), ErrDecode)
		}
		data = normalised
		fallthrough
	case FormatJSON:
		if err := json.Unmarshal(data, &fragment); err != nil {
			return model.Fragment{}, errors.Mark(errors.Wrap(err, "parsing json"), ErrDecode)
		}
	default:
		return model.Fragment{}, errors.Mark(errors.Newf("unknown format %d", format), ErrDecode)
	}
	return fragment, nil
}

// sniff treats anything that opens like a JSON object or array as JSON.
func sniff(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// normaliseYAML rewrites map[any]any (non-string YAML keys) into map[string]any so the
// tree can be re-encoded as JSON.
func normaliseYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normaliseYAML(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normaliseYAML(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normaliseYAML(val)
		}
		return t
	}
	return v
}

// Entry is a dataset as stored in a saved state document.
type Entry struct {
	Name   string `json:"name"`
	Base64 string `json:"base64"`
}

// NewEntry wraps raw dataset text for storage.
func NewEntry(name string, data []byte) Entry {
	return Entry{Name: name, Base64: base64.StdEncoding.EncodeToString(data)}
}

// Raw returns the decoded dataset text.
func (e Entry) Raw() ([]byte, error) {
	if e.Base64 == "" {
		return nil, errors.Mark(errors.Newf("dataset %q has no content", e.Name), ErrDecode)
	}
	data, err := base64.StdEncoding.DecodeString(e.Base64)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "dataset %q", e.Name), ErrDecode)
	}
	return data, nil
}
