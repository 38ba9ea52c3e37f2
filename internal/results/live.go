package results

import "time"

// ExtractLive returns the cracked records found in output lines, one per
// hash, in order of first appearance
func ExtractLive(lines []string) []CrackedRecord {
	now := time.Now()
	seen := make(map[string]struct{})
	var records []CrackedRecord

	for _, line := range lines {
		record, ok := ParseCrackedLine(line)
		if !ok {
			continue
		}
		if _, dup := seen[record.Hash]; dup {
			continue
		}
		seen[record.Hash] = struct{}{}
		record.FoundAt = now
		records = append(records, record)
	}
	return records
}
