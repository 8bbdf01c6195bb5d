package validation

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileCheckError describes why a path failed a filesystem check.
type FileCheckError struct {
	Path    string
	Message string
}

func (e *FileCheckError) Error() string {
	return e.Message
}

// CheckFileExists checks that path names an existing regular file.
func CheckFileExists(path string) error {
	if path == "" {
		return &FileCheckError{Path: path, Message: "file path cannot be empty"}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileCheckError{Path: path, Message: fmt.Sprintf("file not found: %s", path)}
		}
		return &FileCheckError{Path: path, Message: fmt.Sprintf("error checking file %s: %v", path, err)}
	}

	if info.IsDir() {
		return &FileCheckError{Path: path, Message: fmt.Sprintf("path is a directory, not a file: %s", path)}
	}
	return nil
}

// CheckFileReadable opens path for reading and closes it again.
func CheckFileReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &FileCheckError{Path: path, Message: fmt.Sprintf("cannot read %s: %v", path, err)}
	}
	return f.Close()
}

// CheckFileAppendable verifies path can be opened for appending, creating
// it if needed. Existing content is left untouched.
func CheckFileAppendable(path string) error {
	if path == "" {
		return &FileCheckError{Path: path, Message: "file path cannot be empty"}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return &FileCheckError{Path: path, Message: fmt.Sprintf("cannot append to %s: %v", path, err)}
	}
	return f.Close()
}

// CheckDirWritable verifies dir exists and a file can be created inside it.
func CheckDirWritable(dir string) error {
	if dir == "" {
		return &FileCheckError{Path: dir, Message: "directory path cannot be empty"}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return &FileCheckError{Path: dir, Message: fmt.Sprintf("directory not found: %s", dir)}
	}
	if !info.IsDir() {
		return &FileCheckError{Path: dir, Message: fmt.Sprintf("path is a file, not a directory: %s", dir)}
	}

	probe, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return &FileCheckError{Path: dir, Message: fmt.Sprintf("directory not writable: %s", dir)}
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(filepath.Clean(name))
}
