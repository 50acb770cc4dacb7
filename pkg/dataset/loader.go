package dataset

import (
	"os"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/minio/highwayhash"

	"github.com/umsu/umsugraph/pkg/logging"
	"github.com/umsu/umsugraph/pkg/model"
)

var hashKey = []byte("umsugraph-dataset-cache-key-0001")

// Hash returns the content hash used as cache key.
func Hash(data []byte) (uint64, error) {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return 0, err
	}
	_, err = h.Write(data)
	return h.Sum64(), err
}

// Loader decodes datasets, caching fragments by content so re-merging unchanged files
// skips the parse. Cached fragments are shared and must be treated as read-only.
type Loader struct {
	cache *lru.Cache[uint64, model.Fragment]
}

// NewLoader creates a loader holding up to size decoded fragments.
func NewLoader(size int) (*Loader, error) {
	cache, err := lru.New[uint64, model.Fragment](size)
	if err != nil {
		return nil, errors.Wrap(err, "creating dataset cache")
	}
	return &Loader{cache: cache}, nil
}

// Load decodes a named blob, consulting the cache first.
func (l *Loader) Load(name string, data []byte, format Format) (model.Fragment, error) {
	key, err := Hash(data)
	if err != nil {
		return model.Fragment{}, errors.Wrap(err, "hashing dataset")
	}
	if fragment, ok := l.cache.Get(key); ok {
		logging.Trace("dataset cache hit", "name", name)
		fragment.Name = name
		return fragment, nil
	}

	fragment, err := Decode(data, format)
	if err != nil {
		return model.Fragment{}, errors.Wrapf(err, "dataset %q", name)
	}
	fragment.Name = name
	l.cache.Add(key, fragment)
	return fragment, nil
}

// LoadFile reads and decodes a dataset file.
func (l *Loader) LoadFile(path string) (model.Fragment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Fragment{}, errors.Wrapf(err, "reading dataset %s", path)
	}
	return l.Load(path, data, FormatFromPath(path))
}

// LoadEntry decodes a stored base64 entry.
func (l *Loader) LoadEntry(e Entry) (model.Fragment, error) {
	data, err := e.Raw()
	if err != nil {
		return model.Fragment{}, err
	}
	return l.Load(e.Name, data, FormatAuto)
}

// LoadFiles decodes every path in order. Files that fail to decode are left out of the
// result and reported, so the remaining fragments keep their relative priority.
func (l *Loader) LoadFiles(paths []string) ([]model.Fragment, []error) {
	fragments := make([]model.Fragment, 0, len(paths))
	var errs []error
	for _, path := range paths {
		fragment, err := l.LoadFile(path)
		if err != nil {
			logging.Warn("failed to decode dataset", "path", path, "error", err)
			errs = append(errs, err)
			continue
		}
		fragments = append(fragments, fragment)
	}
	return fragments, errs
}

// LoadEntries is LoadFiles for stored entries.
func (l *Loader) LoadEntries(entries []Entry) ([]model.Fragment, []error) {
	fragments := make([]model.Fragment, 0, len(entries))
	var errs []error
	for _, e := range entries {
		fragment, err := l.LoadEntry(e)
		if err != nil {
			logging.Warn("failed to decode dataset", "name", e.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		fragments = append(fragments, fragment)
	}
	return fragments, errs
}

// Len reports the number of cached fragments
func (l *Loader) Len() int {
	return l.cache.Len()
}
