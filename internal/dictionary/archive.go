// Package dictionary prepares wordlists for hashcat, unpacking 7-Zip
// archives into the engine data directory.
package dictionary

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bodgit/sevenzip"

	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

// stampFile records which archive an extraction directory was built from
const stampFile = ".source"

// ErrEmptyArchive is returned for archives without any regular file
var ErrEmptyArchive = errors.New("archive contains no files")

// Resolver turns dictionary paths into paths hashcat can read
type Resolver struct {
	dataDir string
}

// NewResolver extracts archives below dataDir/dictionaries
func NewResolver(dataDir string) *Resolver {
	return &Resolver{dataDir: dataDir}
}

// Resolve returns path unchanged unless it is a .7z archive, in which case
// the archive is extracted (once per archive size and mtime) and the path of
// its largest file is returned
func (r *Resolver) Resolve(path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".7z") {
		return path, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat dictionary archive: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dest := filepath.Join(r.dataDir, "dictionaries", name)
	stamp := strconv.FormatInt(info.Size(), 10) + " " + strconv.FormatInt(info.ModTime().UnixNano(), 10)

	if extracted, ok := cached(dest, stamp); ok {
		debug.Debug("Using previously extracted dictionary %s", extracted)
		return extracted, nil
	}

	debug.Info("Extracting dictionary archive %s", filepath.Base(path))
	extracted, err := extract(path, dest)
	if err != nil {
		return "", err
	}

	content := stamp + "\n" + filepath.Base(extracted) + "\n"
	if err := os.WriteFile(filepath.Join(dest, stampFile), []byte(content), 0644); err != nil {
		debug.Warning("Failed to write extraction stamp for %s: %v", name, err)
	}

	debug.Info("Extracted dictionary archive %s to %s", filepath.Base(path), extracted)
	return extracted, nil
}

// ResolveAll resolves every path, stopping at the first failure
func (r *Resolver) ResolveAll(paths []string) ([]string, error) {
	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		out, err := r.Resolve(p)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare dictionary %s: %w", filepath.Base(p), err)
		}
		resolved = append(resolved, out)
	}
	return resolved, nil
}

func cached(dest, stamp string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dest, stampFile))
	if err != nil {
		return "", false
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || lines[0] != stamp {
		return "", false
	}
	extracted := filepath.Join(dest, lines[1])
	if _, err := os.Stat(extracted); err != nil {
		return "", false
	}
	return extracted, true
}

func extract(archivePath, dest string) (string, error) {
	reader, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer reader.Close()

	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("failed to clear extraction directory: %w", err)
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", fmt.Errorf("failed to create extraction directory: %w", err)
	}

	var largest string
	var largestSize int64 = -1
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}

		// flatten entries so nothing escapes dest
		target := filepath.Join(dest, filepath.Base(filepath.FromSlash(f.Name)))
		size, err := extractFile(f, target)
		if err != nil {
			return "", fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
		if size > largestSize {
			largest, largestSize = target, size
		}
	}

	if largest == "" {
		return "", ErrEmptyArchive
	}
	return largest, nil
}

func extractFile(f *sevenzip.File, target string) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, rc)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return n, err
}
