// Package ziputil provides convenience functions to read, write and
// transform ZIP archives: extracting single entries, enumerating entry
// names by pattern, running a callback over every matching entry
// (sequentially or in parallel), validating archive integrity and
// packing a directory tree or a set of named byte streams into a new
// archive.
//
// Every function opens the archive it's given, does its work and
// closes it before returning; no state is kept between calls. Entry
// names are normalized so that all lookups, patterns and outputs use
// forward slashes, whatever the separator stored in the archive.
package ziputil

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/klauspost/compress/zip"
)

// NameOnly normalizes the path separators in name and returns its
// trailing component, last separator included: NameOnly("a/b/c.txt")
// returns "/c.txt", not "c.txt". A name without any separator is
// returned unchanged. The retained separator is a long-standing quirk
// existing callers depend upon.
func NameOnly(name string) string {
	name = normalizeName(name)
	i := strings.LastIndex(name, "/")
	if i < 0 {
		return name
	}
	return name[i:]
}

// normalizeName rewrites backslashes to forward slashes so that entry
// names compare the same whether they were stored by Windows or POSIX
// tooling.
func normalizeName(name string) string {
	return strings.ReplaceAll(name, `\`, "/")
}

// compilePattern compiles pattern for whole-string matching: a name
// must fully match the pattern, merely containing it is not enough.
// The empty pattern means "match everything" and yields a nil regexp.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
	if err != nil {
		return nil, fmt.Errorf("ziputil: bad pattern %q: %v", pattern, err)
	}
	return re, nil
}

// findEntry returns the entry of r whose normalized name is exactly
// name, or nil if there is none.
func findEntry(r *zip.Reader, name string) *zip.File {
	name = normalizeName(name)
	for _, f := range r.File {
		if normalizeName(f.Name) == name {
			return f
		}
	}
	return nil
}

// readEntry reads the whole payload of f in memory.
func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("ziputil: can't open entry %q: %v", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("ziputil: can't read entry %q: %v", f.Name, err)
	}
	return data, nil
}
