package ziputil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"
)

// NamedStream associates an archive entry name with the reader
// providing its payload.
type NamedStream struct {
	Name   string
	Reader io.Reader
}

// CopyToZip packs every regular file found under rootDir into a new
// archive at outputPath, overwriting it if present. Each entry is
// named after the file's path relative to rootDir, forward-slash
// separated, and keeps the file's modification time. Directories are
// not stored as entries. Entry order follows filesystem traversal
// order.
//
// When rootDir contains no regular file at all, no archive is created.
//
// With move set, the contents of rootDir (files and subdirectories,
// but not rootDir itself) are deleted once the archive has been
// written.
func CopyToZip(outputPath, rootDir string, move bool) error {
	type srcFile struct {
		path    string
		relName string
		modTime time.Time
	}

	var files []srcFile
	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(rootDir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, srcFile{
			path:    path,
			relName: normalizeName(filepath.ToSlash(rel)),
			modTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("ziputil: can't walk %s: %v", rootDir, err)
	}

	if len(files) == 0 {
		return nil
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("ziputil: can't create %s: %v", outputPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, src := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     src.relName,
			Method:   zip.Deflate,
			Modified: src.modTime,
		})
		if err != nil {
			zw.Close()
			return fmt.Errorf("ziputil: can't create entry %q: %v", src.relName, err)
		}

		f, err := os.Open(src.path)
		if err != nil {
			zw.Close()
			return fmt.Errorf("ziputil: can't open %s: %v", src.path, err)
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			zw.Close()
			return fmt.Errorf("ziputil: can't write entry %q: %v", src.relName, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("ziputil: can't finalize %s: %v", outputPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("ziputil: can't close %s: %v", outputPath, err)
	}

	if move {
		return removeContents(rootDir)
	}
	return nil
}

// removeContents deletes every direct child of dir, recursively, but
// leaves dir itself in place. Recursive deletion removes nested
// directories regardless of depth, files first.
func removeContents(dir string) error {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("ziputil: can't list %s: %v", dir, err)
	}
	for _, ent := range ents {
		name := filepath.Join(dir, ent.Name())
		if err := os.RemoveAll(name); err != nil {
			return fmt.Errorf("ziputil: can't remove %s: %v", name, err)
		}
	}
	return nil
}

// WriteIntoZip creates a single-entry archive at outputPath,
// overwriting it if present, with the contents of r as payload of the
// entry called name.
func WriteIntoZip(outputPath, name string, r io.Reader) error {
	return CopyIntoZip(outputPath, []NamedStream{{Name: name, Reader: r}})
}

// CopyIntoZip creates an archive at outputPath, overwriting it if
// present, with one entry per element of streams, written in input
// order. Entry names are normalized to forward slashes. Duplicate
// names are written as-is, one entry each.
func CopyIntoZip(outputPath string, streams []NamedStream) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("ziputil: can't create %s: %v", outputPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, s := range streams {
		name := normalizeName(s.Name)
		w, err := zw.Create(name)
		if err != nil {
			zw.Close()
			return fmt.Errorf("ziputil: can't create entry %q: %v", name, err)
		}
		if _, err := io.Copy(w, s.Reader); err != nil {
			zw.Close()
			return fmt.Errorf("ziputil: can't write entry %q: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("ziputil: can't finalize %s: %v", outputPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("ziputil: can't close %s: %v", outputPath, err)
	}
	return nil
}

// MergeZipFiles writes a new archive at outputPath holding every entry
// of archiveA followed by every entry of archiveB, modification times
// preserved. Names colliding between the two archives are not detected
// nor resolved: the output then holds two entries under the same name.
func MergeZipFiles(archiveA, archiveB, outputPath string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("ziputil: can't create %s: %v", outputPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, src := range []string{archiveA, archiveB} {
		if err := appendEntries(zw, src); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("ziputil: can't finalize %s: %v", outputPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("ziputil: can't close %s: %v", outputPath, err)
	}
	return nil
}

// appendEntries copies every entry of the given archive into zw, in
// iteration order.
func appendEntries(zw *zip.Writer, archive string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("ziputil: can't open archive %s: %v", archive, err)
	}
	defer r.Close()

	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("ziputil: can't open entry %q: %v", f.Name, err)
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     normalizeName(f.Name),
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			rc.Close()
			return fmt.Errorf("ziputil: can't create entry %q: %v", f.Name, err)
		}
		_, err = io.Copy(w, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("ziputil: can't copy entry %q: %v", f.Name, err)
		}
	}
	return nil
}
