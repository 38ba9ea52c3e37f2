package jobs

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/doomedramen/autopwn-sub005/internal/results"
)

// Marker lines appended to a session window when it is paused or resumed
// out-of-band. Lifecycle keywords before the last ResumeMarker are ignored so
// an old "Paused" line cannot outrank the running state after a resume.
const (
	PauseMarker  = "Status...........: Paused"
	ResumeMarker = "Status...........: Running (resumed)"
)

var (
	statusLineRe   = regexp.MustCompile(`^Status\.*:\s*(.*)$`)
	sessionLineRe  = regexp.MustCompile(`^Session\.*:\s*(.*)$`)
	progressLineRe = regexp.MustCompile(`^Progress\.*:`)
	progressRe     = regexp.MustCompile(`(\d+)/(\d+)\s*\(([\d.]+)%\)`)
	recoveredRe    = regexp.MustCompile(`^Recovered\.*:\s*(\d+)/(\d+)`)
	speedRe        = regexp.MustCompile(`^Speed\.#[^:]*:\s*([\d.]+)\s*([A-Za-z]+/s)`)
	etaRe          = regexp.MustCompile(`^Time\.Estimated\.*:\s*(.+)$`)
	dictionaryRe   = regexp.MustCompile(`^Dictionary\.*:\s*(.+)$`)
	guessBaseRe    = regexp.MustCompile(`^Guess\.Base\.*:\s*File\s*\((.+)\)\s*$`)
	trailingParen  = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
)

// lifecycle keywords, highest precedence first
var lifecycleKeywords = []struct {
	status Status
	re     *regexp.Regexp
}{
	{StatusStopped, regexp.MustCompile(`(?i)\b(stop|stopped|abort|aborted|kill|killed|quit)\b`)},
	{StatusPaused, regexp.MustCompile(`(?i)\b(paused|pause|suspended)\b`)},
	{StatusCompleted, regexp.MustCompile(`(?i)\b(completed|finished|exhausted|cracked)\b`)},
	{StatusProcessing, regexp.MustCompile(`(?i)\b(running|processing|initializing|autotuning|selftest)\b`)},
}

// ParseStatus derives a session snapshot from the whole output window. It
// has no side effects and returns the same snapshot for the same input.
// UpdatedAt is left zero.
func ParseStatus(window []string, sessionID string) Session {
	s := Session{ID: sessionID, Status: StatusProcessing}

	var (
		progressCracked, progressTotal   int64
		recoveredCracked, recoveredTotal int64
		haveRecovered                    bool
	)
	cracked := make(map[string]struct{})

	lifecycleFrom := 0
	for i, line := range window {
		if strings.TrimSpace(line) == ResumeMarker {
			lifecycleFrom = i
		}
	}
	best := -1

	for i, raw := range window {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if hash, ok := results.CrackedHash(line); ok {
			cracked[hash] = struct{}{}
			continue
		}

		switch {
		case progressLineRe.MatchString(line):
			if m := progressRe.FindStringSubmatch(line); m != nil {
				progressCracked, _ = strconv.ParseInt(m[1], 10, 64)
				progressTotal, _ = strconv.ParseInt(m[2], 10, 64)
				s.Progress, _ = strconv.ParseFloat(m[3], 64)
			}
		case recoveredRe.MatchString(line):
			m := recoveredRe.FindStringSubmatch(line)
			recoveredCracked, _ = strconv.ParseInt(m[1], 10, 64)
			recoveredTotal, _ = strconv.ParseInt(m[2], 10, 64)
			haveRecovered = true
		case speedRe.MatchString(line):
			m := speedRe.FindStringSubmatch(line)
			value, _ := strconv.ParseFloat(m[1], 64)
			s.Speed = Speed{Value: value, Unit: m[2]}
		case etaRe.MatchString(line):
			s.ETA = strings.TrimSpace(etaRe.FindStringSubmatch(line)[1])
		case guessBaseRe.MatchString(line):
			s.CurrentDictionary = strings.TrimSpace(guessBaseRe.FindStringSubmatch(line)[1])
		case dictionaryRe.MatchString(line):
			s.CurrentDictionary = strings.TrimSpace(trailingParen.ReplaceAllString(dictionaryRe.FindStringSubmatch(line)[1], ""))
		case i >= lifecycleFrom:
			if rank := lifecycleRank(line, sessionID); rank > best {
				best = rank
			}
		}
	}

	if best >= 0 {
		s.Status = lifecycleKeywords[len(lifecycleKeywords)-1-best].status
	}

	if haveRecovered {
		s.CrackedCount, s.TotalCount = recoveredCracked, recoveredTotal
	} else {
		s.CrackedCount, s.TotalCount = progressCracked, progressTotal
	}

	// literal cracked lines are authoritative once present
	if len(cracked) > 0 {
		s.CrackedCount = int64(len(cracked))
		if s.TotalCount > 0 {
			s.Progress = float64(s.CrackedCount) / float64(s.TotalCount) * 100
		}
	}

	s.Progress = clampPercent(s.Progress)
	return s
}

// lifecycleRank returns the precedence of the strongest keyword on a Status
// or Session line (higher wins), or -1 when there is none
func lifecycleRank(line, sessionID string) int {
	var value string
	if m := statusLineRe.FindStringSubmatch(line); m != nil {
		value = m[1]
	} else if m := sessionLineRe.FindStringSubmatch(line); m != nil {
		value = m[1]
		if sessionID != "" {
			value = strings.ReplaceAll(value, sessionID, "")
		}
	} else {
		return -1
	}

	for i, kw := range lifecycleKeywords {
		if kw.re.MatchString(value) {
			return len(lifecycleKeywords) - 1 - i
		}
	}
	return -1
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
