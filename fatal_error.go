// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package emsort

import "fmt"

// FatalError wraps an unrecoverable I/O failure — the file-open,
// read-short, write-short, remove, or scratch-allocation failures that
// leave a stream or heap unable to make progress. By the time one of
// these reaches a caller, the component that returned it has already
// logged the failure and is on its way to aborting the process.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("emsort: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatalError wraps err as a FatalError tagged with op. Returns nil
// if err is nil, so callers can write NewFatalError(op, err) directly
// in an if-err-check without a separate nil guard.
func NewFatalError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Op: op, Err: err}
}
