// Package logscan extracts the ids of successful runs from a loader log.
package logscan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

var okLine = regexp.MustCompile(`id=(\d+)\s+Result:\s+OK`)

// Scan returns the id of every line reporting an OK result, in order.
// Lines of any length are accepted.
func Scan(r io.Reader) ([]string, error) {
	var ids []string

	br := bufio.NewReader(r)

	for {
		line, err := br.ReadString('\n')
		if m := okLine.FindStringSubmatch(line); m != nil {
			ids = append(ids, m[1])
		}

		if errors.Is(err, io.EOF) {
			return ids, nil
		}
		if err != nil {
			return ids, fmt.Errorf("scan log: %w", err)
		}
	}
}

// ScanFile scans the log at path. A missing file yields no ids.
func ScanFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Scan(f)
}

// Join formats ids the way the loader expects them: comma separated.
func Join(ids []string) string {
	return strings.Join(ids, ",")
}
