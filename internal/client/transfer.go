package client

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// Fetch downloads remote into the local file dst.  dst is created new;
// an existing file is never overwritten.  "-" writes to stdout.  A
// failed download removes the partial file.
func Fetch(c *Client, remote, dst string, stdout io.Writer) (int64, error) {
	if dst == "-" {
		return c.Download(remote, stdout)
	}
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := c.Download(remote, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst) //nolint:errcheck
		return n, err
	}
	return n, nil
}

// Put uploads the local file src to remote.
func Put(c *Client, src, remote string) (int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return c.Upload(remote, f)
}

// PrintListing writes one entry per line, directories first as the
// server sent them.
func PrintListing(w io.Writer, entries []string) {
	for _, e := range entries {
		fmt.Fprintln(w, e)
	}
}

// RemoteFile returns the remote path name would have inside dir.
func RemoteFile(dir, name string) string {
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return dir + path.Base(strings.ReplaceAll(name, "\\", "/"))
}
