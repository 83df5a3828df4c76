package ziputil_test

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/arl/dirtree"
	"github.com/klauspost/compress/zip"

	"github.com/AdRoll/ziputil"
	"github.com/AdRoll/ziputil/testutil"
)

// makeTree creates a small directory hierarchy to pack and returns its
// root.
func makeTree(tb testing.TB, files map[string]string) string {
	tb.Helper()

	root := tb.TempDir()
	for name, body := range files {
		fname := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(fname), 0755); err != nil {
			tb.Fatal(err)
		}
		if err := os.WriteFile(fname, []byte(body), 0644); err != nil {
			tb.Fatal(err)
		}
	}
	return root
}

// archiveNames returns the entry names of the archive at path, in
// iteration order.
func archiveNames(tb testing.TB, path string) []string {
	tb.Helper()

	r, err := zip.OpenReader(path)
	if err != nil {
		tb.Fatalf("can't open %s: %v", path, err)
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}

func TestCopyToZipRoundTrip(t *testing.T) {
	files := map[string]string{
		"a.txt":              "alpha",
		"sub/b.bin":          "\x00\x01\x02\x03\xff",
		"sub/deeper/c.txt":   "gamma",
		"sub/deeper/d.empty": "",
	}
	root := makeTree(t, files)
	out := filepath.Join(t.TempDir(), "out.zip")

	if err := ziputil.CopyToZip(out, root, false); err != nil {
		t.Fatalf("CopyToZip error: %v", err)
	}

	// Every regular file under root must come back byte-for-byte under
	// its slash-separated relative name.
	for name, body := range files {
		data, found, err := ziputil.ExtractEntry(out, name)
		if err != nil {
			t.Fatalf("ExtractEntry(%q) error: %v", name, err)
		}
		if !found {
			t.Fatalf("entry %q not found in archive", name)
		}
		if !bytes.Equal(data, []byte(body)) {
			t.Errorf("entry %q = %q, want %q", name, data, body)
		}
	}

	// The entry set must be exactly the set of files under root.
	list, err := dirtree.Sprint(root, dirtree.Type("f"), dirtree.PrintMode(0))
	if err != nil {
		t.Fatalf("can't list source directory: %v", err)
	}
	wantSet := make(map[string]struct{})
	for _, fname := range strings.Split(strings.TrimSpace(list), "\n") {
		wantSet[fname] = struct{}{}
	}

	names, err := ziputil.Entries(out, "")
	if err != nil {
		t.Fatal(err)
	}
	gotSet := make(map[string]struct{})
	for _, name := range names {
		gotSet[name] = struct{}{}
	}
	if !reflect.DeepEqual(gotSet, wantSet) {
		t.Errorf("entry set mismatch:\ngot:  %v\nwant: %v", gotSet, wantSet)
	}

	// Source files are still there: move was not requested.
	if _, err := os.Stat(filepath.Join(root, "a.txt")); err != nil {
		t.Errorf("source file missing after CopyToZip without move: %v", err)
	}
}

func TestCopyToZipModTime(t *testing.T) {
	root := makeTree(t, map[string]string{"a.txt": "alpha"})
	mtime := time.Date(2020, 5, 4, 3, 2, 1, 0, time.UTC)
	if err := os.Chtimes(filepath.Join(root, "a.txt"), mtime, mtime); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "out.zip")
	if err := ziputil.CopyToZip(out, root, false); err != nil {
		t.Fatal(err)
	}

	r, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if len(r.File) != 1 {
		t.Fatalf("got %d entries, want 1", len(r.File))
	}
	if got := r.File[0].Modified; got.Unix() != mtime.Unix() {
		t.Errorf("entry mtime = %v, want %v", got, mtime)
	}
}

func TestCopyToZipNoRegularFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "only", "dirs"), 0755); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "out.zip")
	if err := ziputil.CopyToZip(out, root, false); err != nil {
		t.Fatalf("CopyToZip error: %v", err)
	}

	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("archive created for an empty tree (stat err: %v)", err)
	}
}

func TestCopyToZipMove(t *testing.T) {
	root := makeTree(t, map[string]string{
		"a.txt":            "alpha",
		"sub/b.txt":        "beta",
		"sub/deeper/c.txt": "gamma",
	})
	out := filepath.Join(t.TempDir(), "out.zip")

	if err := ziputil.CopyToZip(out, root, true); err != nil {
		t.Fatalf("CopyToZip error: %v", err)
	}

	// root itself survives, its contents don't, nested directories
	// included.
	left, err := dirtree.List(root, dirtree.ModeAll, dirtree.ExcludeRoot)
	if err != nil {
		t.Fatalf("can't list source directory: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("%d leftovers after move, want none: %+v", len(left), left)
	}

	if ziputil.IsBroken(out) {
		t.Error("archive is broken after move")
	}
}

func TestWriteIntoZip(t *testing.T) {
	out := filepath.Join(t.TempDir(), "single.zip")

	if err := ziputil.WriteIntoZip(out, `dir\one.txt`, strings.NewReader("the one")); err != nil {
		t.Fatalf("WriteIntoZip error: %v", err)
	}

	if names := archiveNames(t, out); !reflect.DeepEqual(names, []string{"dir/one.txt"}) {
		t.Fatalf("entries = %v, want [dir/one.txt]", names)
	}

	data, found, err := ziputil.ExtractEntry(out, "dir/one.txt")
	if err != nil || !found {
		t.Fatalf("ExtractEntry = (found=%v, err=%v)", found, err)
	}
	if string(data) != "the one" {
		t.Errorf("entry payload = %q, want %q", data, "the one")
	}
}

func TestCopyIntoZip(t *testing.T) {
	out := filepath.Join(t.TempDir(), "multi.zip")

	streams := []ziputil.NamedStream{
		{Name: "b.txt", Reader: strings.NewReader("second")},
		{Name: `win\style.txt`, Reader: strings.NewReader("normalized")},
		{Name: "a.txt", Reader: strings.NewReader("third")},
		{Name: "a.txt", Reader: strings.NewReader("duplicate")},
	}
	if err := ziputil.CopyIntoZip(out, streams); err != nil {
		t.Fatalf("CopyIntoZip error: %v", err)
	}

	// Input order and duplicates are preserved verbatim.
	want := []string{"b.txt", "win/style.txt", "a.txt", "a.txt"}
	if names := archiveNames(t, out); !reflect.DeepEqual(names, want) {
		t.Errorf("entries = %v, want %v", names, want)
	}
}

func TestMergeZipFiles(t *testing.T) {
	dir := t.TempDir()

	a := filepath.Join(dir, "a.zip")
	testutil.CreateZip(t, a, []testutil.Entry{
		{Name: "a.txt", Body: "from a"},
		{Name: "shared.txt", Body: "shared from a"},
	})

	b := filepath.Join(dir, "b.zip")
	testutil.CreateZip(t, b, []testutil.Entry{
		{Name: "b.txt", Body: "from b"},
		{Name: "shared.txt", Body: "shared from b"},
	})

	out := filepath.Join(dir, "merged.zip")
	if err := ziputil.MergeZipFiles(a, b, out); err != nil {
		t.Fatalf("MergeZipFiles error: %v", err)
	}

	// A's entries first, then B's; the shared name is present twice.
	want := []string{"a.txt", "shared.txt", "b.txt", "shared.txt"}
	if names := archiveNames(t, out); !reflect.DeepEqual(names, want) {
		t.Fatalf("entries = %v, want %v", names, want)
	}

	r, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var shared []string
	for _, f := range r.File {
		if f.Name != "shared.txt" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			t.Fatal(err)
		}
		rc.Close()
		shared = append(shared, buf.String())
	}
	if !reflect.DeepEqual(shared, []string{"shared from a", "shared from b"}) {
		t.Errorf("duplicated entries = %v, want both payloads in order", shared)
	}
}
