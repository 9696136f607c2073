package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	pe "github.com/sawpanic/punit/internal/errors"
)

// Source loads a Spec by identity from some backing store (filesystem,
// Postgres, Redis…). Registry composes one or more Sources behind a single
// cache.
type Source interface {
	Load(useCaseID, version string) (*Spec, error)
}

// Registry is the concurrent, immutable-once-published spec cache described
// in spec.md §3/§5: entries are safe to share across goroutines without
// locking once stored, mirroring the donor's pattern of registering
// Prometheus collectors once and reading them lock-free thereafter.
type Registry struct {
	cache  sync.Map // string -> *Spec
	source Source
}

// NewRegistry creates a registry backed by the given Source (typically a
// layered cache→db→file chain; see internal/cache and internal/persistence).
func NewRegistry(source Source) *Registry {
	return &Registry{source: source}
}

// Get returns the immutable spec for (useCaseID, version), loading and
// validating it from the backing source on first request and serving every
// subsequent request from the in-process cache.
func (r *Registry) Get(useCaseID, version string) (*Spec, error) {
	key := CacheKey(useCaseID, version)

	if cached, ok := r.cache.Load(key); ok {
		return cached.(*Spec), nil
	}

	loaded, err := r.source.Load(useCaseID, version)
	if err != nil {
		return nil, err
	}
	if err := Validate(loaded); err != nil {
		return nil, err
	}

	actual, _ := r.cache.LoadOrStore(key, loaded)
	return actual.(*Spec), nil
}

// Validate enforces spec.md §4.5's load-time invariants: approvedAt and
// approvedBy present, experimentalBasis well-formed, minPassRate in range.
func Validate(s *Spec) error {
	if s.ApprovedBy == "" {
		return pe.New(pe.KindSpecificationNotApproved, fmt.Sprintf("spec %s has no approvedBy", s.Key()))
	}
	if s.ApprovedAt.IsZero() {
		return pe.New(pe.KindSpecificationNotApproved, fmt.Sprintf("spec %s has no approvedAt", s.Key()))
	}

	basis := s.RegressionThreshold.ExperimentalBasis
	if basis.SamplesExp <= 0 {
		return pe.New(pe.KindSpecificationMalformed, fmt.Sprintf("spec %s: experimentalBasis.samples_exp must be positive", s.Key()))
	}
	if basis.SuccessesExp < 0 || basis.SuccessesExp > basis.SamplesExp {
		return pe.New(pe.KindSpecificationMalformed, fmt.Sprintf("spec %s: successes_exp (%d) must be in [0, samples_exp=%d]", s.Key(), basis.SuccessesExp, basis.SamplesExp))
	}
	if s.Requirements.MinPassRate < 0 || s.Requirements.MinPassRate > 1 {
		return pe.New(pe.KindSpecificationMalformed, fmt.Sprintf("spec %s: requirements.minPassRate must be in [0,1]", s.Key()))
	}
	return nil
}

// FileSource loads specs from a directory of YAML files named
// "<useCaseId>@<version>.yaml", the on-disk format for the spec file type of
// spec.md §6.3. Concurrent reads are safe; files are never written here.
type FileSource struct {
	Dir string
}

// NewFileSource creates a FileSource rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir}
}

// Load reads and parses "<dir>/<useCaseId>@<version>.yaml".
func (fs *FileSource) Load(useCaseID, version string) (*Spec, error) {
	path := filepath.Join(fs.Dir, CacheKey(useCaseID, version)+".yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pe.Wrap(pe.KindSpecificationNotFound, fmt.Sprintf("no spec file for %s", CacheKey(useCaseID, version)), err)
		}
		return nil, pe.Wrap(pe.KindSpecificationMalformed, "failed to read spec file", err)
	}

	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, pe.Wrap(pe.KindSpecificationMalformed, "failed to parse spec YAML", err)
	}
	if s.UseCaseID == "" {
		s.UseCaseID = useCaseID
	}
	if s.Version == "" {
		s.Version = version
	}
	return &s, nil
}

// ChainSource tries each Source in order, returning the first spec found
// and falling through SpecificationNotFound errors to the next source —
// used to compose Redis→Postgres→file (internal/cache, internal/persistence).
type ChainSource struct {
	Sources []Source
}

// Load tries each configured source in order.
func (c *ChainSource) Load(useCaseID, version string) (*Spec, error) {
	var lastErr error
	for _, src := range c.Sources {
		s, err := src.Load(useCaseID, version)
		if err == nil {
			return s, nil
		}
		lastErr = err
		if !pe.Is(err, pe.KindSpecificationNotFound) {
			return nil, err
		}
	}
	if lastErr == nil {
		lastErr = pe.New(pe.KindSpecificationNotFound, fmt.Sprintf("no source configured for %s", CacheKey(useCaseID, version)))
	}
	return nil, lastErr
}
