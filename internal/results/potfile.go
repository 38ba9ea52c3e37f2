package results

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

// ErrResultStoreUnavailable is returned when the potfile cannot be read,
// including when it has not been created yet
var ErrResultStoreUnavailable = errors.New("result store unavailable")

// ParsePotfileLine parses hash:plaintext[:salt[:hexPlaintext]]. Lines in
// cracked-credential shape are parsed as such. Empty lines yield false.
func ParsePotfileLine(line string) (CrackedRecord, bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return CrackedRecord{}, false
	}

	if record, ok := ParseCrackedLine(line); ok {
		return record, true
	}

	fields := strings.SplitN(line, ":", 4)
	record := CrackedRecord{Hash: fields[0]}
	if len(fields) > 1 {
		record.Plaintext = fields[1]
	}
	if len(fields) > 2 && fields[2] != "" {
		record.Salt = fields[2]
	}
	if len(fields) > 3 && fields[3] != "" {
		record.HexPlaintext = fields[3]
	}
	decodeHexPlaintext(&record)
	return record, true
}

// ReadPotfile reads every record of the potfile at path. FoundAt is the
// file's modification time since hashcat does not store per-line times.
func ReadPotfile(path string) ([]CrackedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResultStoreUnavailable, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResultStoreUnavailable, err)
	}

	var records []CrackedRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		record, ok := ParsePotfileLine(scanner.Text())
		if !ok {
			continue
		}
		record.FoundAt = info.ModTime()
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResultStoreUnavailable, err)
	}

	debug.Debug("Read %d records from potfile %s", len(records), path)
	return records, nil
}
