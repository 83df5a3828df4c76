package ziputil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	log "github.com/sirupsen/logrus"

	"github.com/AdRoll/ziputil/pkg/zagnostic"
)

// ExtractEntry returns the payload of the archive entry called name.
// A missing entry is not an error: found reports whether the entry
// exists. Lookup is exact, after path separator normalization on both
// sides.
func ExtractEntry(archive, name string) (data []byte, found bool, err error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, false, fmt.Errorf("ziputil: can't open archive %s: %v", archive, err)
	}
	defer r.Close()

	f := findEntry(&r.Reader, name)
	if f == nil {
		return nil, false, nil
	}

	data, err = readEntry(f)
	if err != nil {
		return nil, true, err
	}
	return data, true, nil
}

// ExtractEntryToFile streams the payload of the archive entry called
// name to outDir/name, without buffering the whole payload in memory.
// outDir, and any directory component of name, must already exist.
// A missing entry is not an error: found reports whether the entry
// exists.
func ExtractEntryToFile(archive, name, outDir string) (found bool, err error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return false, fmt.Errorf("ziputil: can't open archive %s: %v", archive, err)
	}
	defer r.Close()

	f := findEntry(&r.Reader, name)
	if f == nil {
		return false, nil
	}

	rc, err := f.Open()
	if err != nil {
		return true, fmt.Errorf("ziputil: can't open entry %q: %v", f.Name, err)
	}
	defer rc.Close()

	fname := filepath.Join(outDir, filepath.FromSlash(normalizeName(name)))
	out, err := os.Create(fname)
	if err != nil {
		return true, fmt.Errorf("ziputil: can't create %s: %v", fname, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return true, fmt.Errorf("ziputil: can't extract %q to %s: %v", f.Name, fname, err)
	}
	if err := out.Close(); err != nil {
		return true, fmt.Errorf("ziputil: can't close %s: %v", fname, err)
	}
	return true, nil
}

// ExtractEntryDecompressed is like ExtractEntry for entries whose
// payload is itself a gzip, zstd or lz4 stream: the payload is
// transparently decompressed before being returned. Payloads in any
// other format are returned untouched.
func ExtractEntryDecompressed(archive, name string) (data []byte, found bool, err error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, false, fmt.Errorf("ziputil: can't open archive %s: %v", archive, err)
	}
	defer r.Close()

	f := findEntry(&r.Reader, name)
	if f == nil {
		return nil, false, nil
	}

	rc, err := f.Open()
	if err != nil {
		return nil, true, fmt.Errorf("ziputil: can't open entry %q: %v", f.Name, err)
	}
	defer rc.Close()

	zr, err := zagnostic.NewReader(rc)
	if err != nil {
		return nil, true, fmt.Errorf("ziputil: entry %q: %v", f.Name, err)
	}
	defer zr.Close()

	data, err = io.ReadAll(zr)
	if err != nil {
		return nil, true, fmt.Errorf("ziputil: can't read entry %q: %v", f.Name, err)
	}
	return data, true, nil
}

// Entries returns the names of the archive entries fully matching
// pattern, in archive iteration order. The empty pattern matches every
// entry. Matching is whole-string: a name merely containing pattern as
// a substring is excluded. The returned slice is independent of the
// archive, which is closed when Entries returns.
func Entries(archive, pattern string) ([]string, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("ziputil: can't open archive %s: %v", archive, err)
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		name := normalizeName(f.Name)
		if re == nil || re.MatchString(name) {
			names = append(names, name)
		}
	}
	return names, nil
}

// IsBroken reports whether path cannot be opened and fully enumerated
// as a ZIP archive. The underlying error, if any, is logged. This is a
// structural check only: entry payloads are not decompressed or
// checksummed.
func IsBroken(path string) bool {
	r, err := zip.OpenReader(path)
	if err != nil {
		log.WithFields(log.Fields{"archive": path}).WithError(err).Error("broken archive")
		return true
	}
	defer r.Close()

	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			log.WithFields(log.Fields{"archive": path, "entry": f.Name}).WithError(err).Error("broken archive entry")
			return true
		}
		rc.Close()
	}
	return false
}
