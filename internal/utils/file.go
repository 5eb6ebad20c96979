package utils

import (
	"os"
	"path/filepath"
)

// WriteFileAtomic replaces path through a sibling temp file so a crash never leaves half a document.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}

// Quarantine moves an unreadable document to path.corrupt and returns the new name.
// An earlier quarantined copy is overwritten.
func Quarantine(path string) (string, error) {
	target := path + ".corrupt"
	if err := os.Rename(path, target); err != nil {
		return "", err
	}
	return target, nil
}
