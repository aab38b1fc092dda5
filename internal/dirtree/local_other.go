//go:build !unix

package dirtree

import "os"

// canWrite creates and removes a temporary file in dir.
func canWrite(dir string) bool {
	f, err := os.CreateTemp(dir, ".gamebrowser-write-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	_ = os.Remove(name)
	return true
}
