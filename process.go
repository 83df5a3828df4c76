package ziputil

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/klauspost/compress/zip"
)

// ProcessEntries calls fn once per archive entry fully matching
// pattern, passing the entry's normalized name and its whole payload,
// and returns the collected results in archive iteration order. The
// empty pattern matches every entry.
//
// The batch is all-or-nothing: the first error, whether an I/O error
// or one returned by fn, aborts the remaining entries and is returned
// with no partial results.
func ProcessEntries[T any](archive, pattern string, fn func(name string, data []byte) (T, error)) ([]T, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("ziputil: can't open archive %s: %v", archive, err)
	}
	defer r.Close()

	var results []T
	for _, f := range r.File {
		name := normalizeName(f.Name)
		if re != nil && !re.MatchString(name) {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		res, err := fn(name, data)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// ProcessEntriesParallel is ProcessEntries with per-entry work spread
// over a pool of runtime.NumCPU() workers. The result order is the
// same as ProcessEntries' for the same archive and pattern: results
// are collected by entry position, not by completion order. Concurrent
// entry reads are safe, the open archive is never mutated during the
// batch.
//
// Like ProcessEntries the batch is all-or-nothing; when several
// entries fail, the error of the earliest one in iteration order is
// returned. There is no cancellation: entries already dispatched run
// to completion before ProcessEntriesParallel returns.
func ProcessEntriesParallel[T any](archive, pattern string, fn func(name string, data []byte) (T, error)) ([]T, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("ziputil: can't open archive %s: %v", archive, err)
	}
	defer r.Close()

	var files []*zip.File
	for _, f := range r.File {
		if re == nil || re.MatchString(normalizeName(f.Name)) {
			files = append(files, f)
		}
	}

	results := make([]T, len(files))
	errs := make([]error, len(files))

	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup
	for i, f := range files {
		i, f := i, f
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			data, err := readEntry(f)
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = fn(normalizeName(f.Name), data)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// WalkEntries is the side-effect-only form of ProcessEntries: fn is
// called once per matching entry, in archive iteration order, and no
// results are collected. The first error aborts the walk.
func WalkEntries(archive, pattern string, fn func(name string, data []byte) error) error {
	_, err := ProcessEntries(archive, pattern, func(name string, data []byte) (struct{}, error) {
		return struct{}{}, fn(name, data)
	})
	return err
}
