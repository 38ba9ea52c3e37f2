// Package hashcat launches and controls hashcat processes and queries its
// device and hash mode catalogs.
package hashcat

import (
	"errors"
	"fmt"
	"strings"
)

// Attack modes accepted by the engine
const (
	AttackStraight    = 0
	AttackCombination = 1
	AttackBruteForce  = 3
	AttackHybridDict  = 6 // wordlist + mask
	AttackHybridMask  = 7 // mask + wordlist
)

// ErrInvalidJob is returned when a JobSpec cannot be turned into a command line
var ErrInvalidJob = errors.New("invalid job specification")

// JobSpec describes one cracking job. It is never modified by the engine.
type JobSpec struct {
	Name            string   `json:"name"`
	HashFile        string   `json:"hash_file"`
	Dictionaries    []string `json:"dictionaries"`
	HashType        int      `json:"hash_type"`
	AttackMode      int      `json:"attack_mode"`
	Rules           []string `json:"rules,omitempty"`
	Mask            string   `json:"mask,omitempty"`
	Workload        int      `json:"workload,omitempty"`
	TempAbort       int      `json:"temp_abort,omitempty"` // celsius, 0 leaves hashcat's default
	DisableHWMon    bool     `json:"disable_hwmon,omitempty"`
	DisablePotfile  bool     `json:"disable_potfile,omitempty"`
	TotalCandidates int64    `json:"total_candidates,omitempty"`
}

// Validate checks that the job can be run
func (s JobSpec) Validate() error {
	if strings.TrimSpace(s.HashFile) == "" {
		return fmt.Errorf("%w: hash file is required", ErrInvalidJob)
	}
	if s.HashType < 0 {
		return fmt.Errorf("%w: hash type must not be negative", ErrInvalidJob)
	}

	switch s.AttackMode {
	case AttackStraight, AttackCombination:
		if len(s.Dictionaries) == 0 {
			return fmt.Errorf("%w: attack mode %d needs at least one dictionary", ErrInvalidJob, s.AttackMode)
		}
		if s.AttackMode == AttackCombination && len(s.Dictionaries) != 2 {
			return fmt.Errorf("%w: combination attack needs exactly two dictionaries", ErrInvalidJob)
		}
	case AttackBruteForce:
		if s.Mask == "" {
			return fmt.Errorf("%w: brute-force attack needs a mask", ErrInvalidJob)
		}
	case AttackHybridDict, AttackHybridMask:
		if len(s.Dictionaries) == 0 || s.Mask == "" {
			return fmt.Errorf("%w: hybrid attack needs a dictionary and a mask", ErrInvalidJob)
		}
	default:
		return fmt.Errorf("%w: unsupported attack mode %d", ErrInvalidJob, s.AttackMode)
	}

	for _, d := range s.Dictionaries {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("%w: empty dictionary path", ErrInvalidJob)
		}
	}
	if s.Workload < 0 || s.TempAbort < 0 || s.TotalCandidates < 0 {
		return fmt.Errorf("%w: negative workload, temperature or candidate count", ErrInvalidJob)
	}
	return nil
}
