// Package spec implements the spec registry (§4.5) and threshold deriver
// (§4.5, §4.1) of spec.md: immutable approved specifications loaded by
// (useCaseId, version), and the Wilson-score derivation of a test's
// effective minPassRate from a spec's experimental basis.
package spec

import "time"

// ExperimentalBasis is the empirical (n_exp, k_exp) a spec's requirement was
// derived from, plus its precomputed observed rate and standard error.
type ExperimentalBasis struct {
	SamplesExp    int     `yaml:"samples_exp" json:"samples_exp"`
	SuccessesExp  int     `yaml:"successes_exp" json:"successes_exp"`
	ObservedRate  float64 `yaml:"observed_rate" json:"observed_rate"`
	StandardError float64 `yaml:"standard_error" json:"standard_error"`
}

// Requirements names the spec's normative pass-rate requirement and an
// optional success-criteria predicate identifier, left opaque to the core
// (spec.md treats success criteria as a pluggable predicate — out of scope).
type Requirements struct {
	MinPassRate     float64 `yaml:"min_pass_rate" json:"min_pass_rate"`
	SuccessCriteria string  `yaml:"success_criteria,omitempty" json:"success_criteria,omitempty"`
}

// CostEnvelope is an optional, opaque cost/budget hint carried alongside a
// spec — consumed only for display/provenance in this core.
type CostEnvelope struct {
	EstimatedTokensPerSample int64   `yaml:"estimated_tokens_per_sample,omitempty" json:"estimated_tokens_per_sample,omitempty"`
	EstimatedUSDPerSample    float64 `yaml:"estimated_usd_per_sample,omitempty" json:"estimated_usd_per_sample,omitempty"`
}

// Derivation records which method and critical value produced a derived
// threshold, for provenance display.
type Derivation struct {
	Method            string  `yaml:"method" json:"method"`
	ZScore            float64 `yaml:"z_score" json:"z_score"`
	TestStandardError float64 `yaml:"test_standard_error" json:"test_standard_error"`
}

// RegressionThreshold is the pre-derived threshold a spec file may ship
// (computed once at approval time and stored for display parity with what a
// live deriver would compute).
type RegressionThreshold struct {
	ExperimentalBasis  ExperimentalBasis `yaml:"experimental_basis" json:"experimental_basis"`
	TestConfiguration  struct {
		Samples         int     `yaml:"samples" json:"samples"`
		ConfidenceLevel float64 `yaml:"confidence_level" json:"confidence_level"`
	} `yaml:"test_configuration" json:"test_configuration"`
	DerivedMinPassRate float64    `yaml:"derived_min_pass_rate" json:"derived_min_pass_rate"`
	Derivation         Derivation `yaml:"derivation" json:"derivation"`
	Explanation        string     `yaml:"explanation,omitempty" json:"explanation,omitempty"`
}

// Spec is an immutable, approved specification loaded by (useCaseId,
// version). Once published into the registry's cache it is never mutated,
// so concurrent reads need no locking (spec.md §5).
type Spec struct {
	SpecID             string               `yaml:"spec_id" json:"spec_id"`
	UseCaseID          string               `yaml:"use_case_id" json:"use_case_id"`
	Version            string               `yaml:"version" json:"version"`
	ApprovedAt         time.Time            `yaml:"approved_at" json:"approved_at"`
	ApprovedBy         string               `yaml:"approved_by" json:"approved_by"`
	ApprovalNotes      string               `yaml:"approval_notes,omitempty" json:"approval_notes,omitempty"`
	SourceBaselines    []string             `yaml:"source_baselines,omitempty" json:"source_baselines,omitempty"`
	ExecutionContext   map[string]string    `yaml:"execution_context,omitempty" json:"execution_context,omitempty"`
	Requirements       Requirements         `yaml:"requirements" json:"requirements"`
	RegressionThreshold RegressionThreshold `yaml:"regression_threshold" json:"regression_threshold"`
	CostEnvelope       *CostEnvelope        `yaml:"cost_envelope,omitempty" json:"cost_envelope,omitempty"`
}

// Key returns the registry cache key for this spec.
func (s *Spec) Key() string { return CacheKey(s.UseCaseID, s.Version) }

// CacheKey formats the (useCaseId, version) pair into the registry's cache
// key, shared by the in-memory, Redis, and Postgres layers so all three
// agree on identity.
func CacheKey(useCaseID, version string) string {
	return useCaseID + "@" + version
}
