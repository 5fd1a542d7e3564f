// Package pathpolicy decides whether a client-supplied path may touch
// the file system and, if so, where it lands under a user's home
// directory.
//
// The resolution is a plain concatenation of home and the raw path.  The
// segment check is the only thing standing between a client and the
// rest of the disk, so it runs before any file-system call.
package pathpolicy

import (
	"errors"
	"strings"
)

// Mode selects the trailing-slash rule.
type Mode int

const (
	// Directory paths must end with '/'.
	Directory Mode = iota
	// File paths must not end with '/'.
	File
)

func (m Mode) String() string {
	if m == Directory {
		return "directory"
	}
	return "file"
}

// Violation classifies why a path was refused.
type Violation int

const (
	NotAbsolute Violation = iota + 1
	TrailingSlash
	Traversal
)

// AccessViolation is returned for every refused path.  Callers reply
// with an AccessFailure frame.
type AccessViolation struct {
	Path   string
	Mode   Mode
	Reason Violation
}

func (e *AccessViolation) Error() string {
	var why string
	switch e.Reason {
	case NotAbsolute:
		why = "must start with /"
	case TrailingSlash:
		if e.Mode == Directory {
			why = "directory path must end with /"
		} else {
			why = "file path must not end with /"
		}
	case Traversal:
		why = "contains a .. or ~ segment"
	default:
		why = "rejected"
	}
	return "path " + e.Path + ": " + why
}

// IsViolation reports whether err is an AccessViolation.
func IsViolation(err error) bool {
	var av *AccessViolation
	return errors.As(err, &av)
}

// Check applies the rules in order; the first failure wins.
func Check(raw string, mode Mode) error {
	if !strings.HasPrefix(raw, "/") {
		return &AccessViolation{Path: raw, Mode: mode, Reason: NotAbsolute}
	}

	endsWithSlash := strings.HasSuffix(raw, "/")
	if (mode == Directory) != endsWithSlash {
		return &AccessViolation{Path: raw, Mode: mode, Reason: TrailingSlash}
	}

	// A lone "." segment is accepted; it resolves to the same directory.
	for _, seg := range strings.Split(raw, "/") {
		if seg == ".." || seg == "~" {
			return &AccessViolation{Path: raw, Mode: mode, Reason: Traversal}
		}
	}
	return nil
}

// Resolve validates raw and returns home+raw.
func Resolve(raw, home string, mode Mode) (string, error) {
	if err := Check(raw, mode); err != nil {
		return "", err
	}
	return home + raw, nil
}
