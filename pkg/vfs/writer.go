// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-mantavfs.
//
// go-mantavfs is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package vfs

import (
	"errors"
	"io"
	"sync"
)

// uploadWriter streams writes into a single PUT running in the background.
// The upload completes, and its error is reported, on Close.
type uploadWriter struct {
	pw      *io.PipeWriter
	done    chan error
	written int64

	once    sync.Once
	err     error
	onClose func(written int64, err error)
}

func newUploadWriter(put func(r io.Reader) error, onClose func(written int64, err error)) *uploadWriter {
	pr, pw := io.Pipe()
	w := &uploadWriter{pw: pw, done: make(chan error, 1), onClose: onClose}
	go func() {
		err := put(pr)
		// Unblock writers if the upload stopped early.
		if err != nil {
			_ = pr.CloseWithError(err)
		} else {
			_ = pr.Close()
		}
		w.done <- err
	}()
	return w
}

func (w *uploadWriter) Write(p []byte) (int, error) {
	n, err := w.pw.Write(p)
	w.written += int64(n)
	return n, err
}

// Close finishes the upload and waits for the store's response.
func (w *uploadWriter) Close() error {
	return w.finish(nil)
}

// CloseWithError aborts the upload. The store never sees a complete body.
func (w *uploadWriter) CloseWithError(cause error) error {
	if cause == nil {
		cause = errors.New("upload aborted")
	}
	return w.finish(cause)
}

func (w *uploadWriter) finish(cause error) error {
	w.once.Do(func() {
		if cause != nil {
			_ = w.pw.CloseWithError(cause)
		} else {
			_ = w.pw.Close()
		}
		w.err = <-w.done
		if cause != nil && w.err == nil {
			w.err = cause
		}
		if w.onClose != nil {
			w.onClose(w.written, w.err)
		}
	})
	return w.err
}
