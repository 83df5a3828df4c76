// Package testutil holds helpers shared by the ziputil test suites.
package testutil

import (
	"os"
	"testing"

	"github.com/klauspost/compress/zip"
	log "github.com/sirupsen/logrus"
)

// Entry describes one file to place into a test archive.
type Entry struct {
	Name string
	Body string
}

// CreateZip writes at path a ZIP archive holding the given entries, in
// order. It fails the test on any error.
func CreateZip(tb testing.TB, path string, entries []Entry) {
	tb.Helper()

	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("can't create archive: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			tb.Fatalf("can't create entry %q: %v", e.Name, err)
		}
		if _, err := w.Write([]byte(e.Body)); err != nil {
			tb.Fatalf("can't write entry %q: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("can't finalize archive: %v", err)
	}
	if err := f.Close(); err != nil {
		tb.Fatalf("can't close archive: %v", err)
	}
}

// DisableLogging is a test helper that disable logging (in fact it sets
// its level to panic). It returns a function which when called, resets
// it to its previous level. Its useful to be called as follows in
// test/benchmarks:
//
//	func TestFoo(t *testing.T) {
//	    defer DisableLogging()()
//
//	    // logging is disabled for the whole test
//	}
func DisableLogging() (reset func()) {
	lvl := log.GetLevel()
	log.SetLevel(log.PanicLevel)
	return func() { log.SetLevel(lvl) }
}

// LessLogging is a test helper that decreases logging (in fact it sets
// its level to Error). It returns a function which when called, resets
// it to its previous level.
func LessLogging() (reset func()) {
	lvl := log.GetLevel()
	log.SetLevel(log.ErrorLevel)
	return func() { log.SetLevel(lvl) }
}

// SetLogLevel sets the global log level for the execution of the
// current tb. Though setting the log level is safe for use from
// concurrent goroutines, it's not advised to use SetLogLevel in
// parallel tests/benchmark, i.e. using t.Parallel().
func SetLogLevel(tb testing.TB, level log.Level) {
	cur := log.GetLevel()
	log.SetLevel(level)
	tb.Cleanup(func() { log.SetLevel(cur) })
}
