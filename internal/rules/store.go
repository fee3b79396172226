package rules

import "github.com/avoronkov/talent-scout/internal/extract"

// Mode selects how aggressively the pipeline acts on passing candidates.
type Mode string

const (
	// ModeCalibration requires an explicit confirmation before any outreach.
	ModeCalibration Mode = "calibration"
	// ModeAutomatic contacts passing candidates without confirmation.
	ModeAutomatic Mode = "automatic"
)

// Store is the configuration collaborator the pipeline reads rules from.
// Read-only from the pipeline's perspective.
type Store interface {
	RuleSpec() Spec
	Mode() Mode
	Cascade() extract.Cascade
}

// StaticStore is a Store backed by values resolved once at startup (the CLI
// loads them from the viper config).
type StaticStore struct {
	spec    Spec
	mode    Mode
	cascade extract.Cascade
}

func NewStaticStore(spec Spec, mode Mode, cascade extract.Cascade) *StaticStore {
	if mode != ModeAutomatic {
		mode = ModeCalibration
	}
	if len(cascade) == 0 {
		cascade = extract.DefaultCascade()
	}
	return &StaticStore{spec: spec, mode: mode, cascade: cascade}
}

func (s *StaticStore) RuleSpec() Spec           { return s.spec }
func (s *StaticStore) Mode() Mode               { return s.mode }
func (s *StaticStore) Cascade() extract.Cascade { return s.cascade }
