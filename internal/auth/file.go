package auth

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseRecords reads the line-oriented credential format:
//
//	# comment
//	username:password:/home/directory
//
// Blank lines and lines starting with '#' are skipped.  The password
// may not contain ':'; the home directory may.
func ParseRecords(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("line %d: want username:password:home", lineNo)
		}
		out = append(out, Record{
			Username: parts[0],
			Password: parts[1],
			Home:     parts[2],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	return out, nil
}

// LoadFile parses the credential file at path.
func LoadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open credentials %s: %w", path, err)
	}
	defer f.Close()

	recs, err := ParseRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}
