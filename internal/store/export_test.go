package store

import (
	"errors"
	"os"
)

// errInjected is returned by writes after the allowance runs out.
var errInjected = errors.New("injected write failure")

type failingFile struct {
	*os.File
	allowance int
}

func (f *failingFile) Write(p []byte) (int, error) {
	if len(p) > f.allowance {
		n, _ := f.File.Write(p[:f.allowance])
		f.allowance = 0
		return n, errInjected
	}
	f.allowance -= len(p)
	return f.File.Write(p)
}

// FailWritesAfter makes every file opened by Save fail once n bytes have been
// written. The returned func restores normal behaviour.
func FailWritesAfter(n int) (restore func()) {
	prev := openFile
	openFile = func(name string, flag int, perm os.FileMode) (writableFile, error) {
		f, err := os.OpenFile(name, flag, perm)
		if err != nil {
			return nil, err
		}
		return &failingFile{File: f, allowance: n}, nil
	}
	return func() { openFile = prev }
}

// ErrInjected exports errInjected.
var ErrInjected = errInjected
