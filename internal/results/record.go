// Package results extracts cracked credentials from hashcat's live output
// and from its potfile.
package results

import (
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// CrackedRecord is one recovered credential
type CrackedRecord struct {
	Hash         string    `json:"hash"`
	Plaintext    string    `json:"plaintext"`
	Salt         string    `json:"salt,omitempty"`
	HexPlaintext string    `json:"hex_plaintext,omitempty"`
	BSSID        string    `json:"bssid,omitempty"`
	StationMAC   string    `json:"station_mac,omitempty"`
	ESSID        string    `json:"essid,omitempty"`
	FoundAt      time.Time `json:"found_at"`
}

// crackedLineRe matches <32hex>:<12hex mac>:<12hex mac>:<essid>:<plaintext>.
// The plaintext is the remainder of the line and may contain colons.
var crackedLineRe = regexp.MustCompile(`^([a-fA-F0-9]{32}):([a-fA-F0-9]{12}):([a-fA-F0-9]{12}):([^:]*):(.*)$`)

// ParseCrackedLine parses a line in hashcat's cracked-credential shape
func ParseCrackedLine(line string) (CrackedRecord, bool) {
	m := crackedLineRe.FindStringSubmatch(normalizeLine(line))
	if m == nil {
		return CrackedRecord{}, false
	}
	record := CrackedRecord{
		Hash:       m[1],
		BSSID:      formatMAC(m[2]),
		StationMAC: formatMAC(m[3]),
		ESSID:      m[4],
		Plaintext:  m[5],
	}
	decodeHexPlaintext(&record)
	return record, true
}

// normalizeLine strips leading blanks and the line terminator. Trailing
// blanks belong to the plaintext and are kept.
func normalizeLine(line string) string {
	return strings.TrimLeft(strings.TrimRight(line, "\r\n"), " \t")
}

// CrackedHash returns the hash field of a cracked-credential line
func CrackedHash(line string) (string, bool) {
	m := crackedLineRe.FindStringSubmatch(normalizeLine(line))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// formatMAC renders 12 hex digits as aa:bb:cc:dd:ee:ff
func formatMAC(raw string) string {
	raw = strings.ToLower(raw)
	var b strings.Builder
	for i := 0; i < len(raw); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(raw[i : i+2])
	}
	return b.String()
}

// decodeHexPlaintext handles hashcat's $HEX[...] encoding of plaintexts
// containing separators or non-printable bytes
func decodeHexPlaintext(r *CrackedRecord) {
	if !strings.HasPrefix(r.Plaintext, "$HEX[") || !strings.HasSuffix(r.Plaintext, "]") {
		return
	}
	encoded := r.Plaintext[len("$HEX[") : len(r.Plaintext)-1]
	decoded, err := hex.DecodeString(encoded)
	if err != nil {
		return
	}
	if r.HexPlaintext == "" {
		r.HexPlaintext = encoded
	}
	r.Plaintext = string(decoded)
}
