/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package mapfs provides an in-memory filesystem implementation for testing.
package mapfs

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"sync"
	"testing/fstest"
	"time"

	fhfs "github.com/factorio-headless/fhctl/fs"
)

// MapFileSystem implements fs.FileSystem using an in-memory fstest.MapFS.
// Directories are tracked with ".keep" marker files and symbolic links are
// stored as entries with fs.ModeSymlink whose data is the link target.
type MapFileSystem struct {
	mu      sync.RWMutex
	mapFS   fstest.MapFS
	tempDir string
	modTime time.Time
	tempSeq int
}

var _ fhfs.FileSystem = (*MapFileSystem)(nil)

// New creates a new in-memory filesystem for testing.
func New() *MapFileSystem {
	return &MapFileSystem{
		mapFS:   make(fstest.MapFS),
		tempDir: "/tmp",
		modTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// AddFile adds a file to the in-memory filesystem.
func (mfs *MapFileSystem) AddFile(path string, content string, mode fs.FileMode) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	mfs.mapFS[mfs.cleanPath(path)] = &fstest.MapFile{
		Data:    []byte(content),
		Mode:    mode,
		ModTime: mfs.modTime,
	}
}

// AddDir adds a directory to the in-memory filesystem.
func (mfs *MapFileSystem) AddDir(path string, mode fs.FileMode) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	mfs.addDirLocked(mfs.cleanPath(path), mode)
}

// WriteFile implements FileSystem.
func (mfs *MapFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	name = mfs.cleanPath(name)
	if err := mfs.ensureParentDirLocked(name); err != nil {
		return err
	}

	mfs.mapFS[name] = &fstest.MapFile{
		Data:    append([]byte(nil), data...),
		Mode:    perm,
		ModTime: mfs.modTime,
	}
	return nil
}

// ReadFile implements FileSystem.
func (mfs *MapFileSystem) ReadFile(name string) ([]byte, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	return fs.ReadFile(mfs.mapFS, mfs.resolveLocked(mfs.cleanPath(name)))
}

// CreateTemp implements FileSystem. The file becomes visible when closed.
func (mfs *MapFileSystem) CreateTemp(dir, pattern string) (fhfs.WritableFile, error) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	mfs.tempSeq++
	seq := strconv.Itoa(mfs.tempSeq)
	base := pattern + seq
	if prefix, suffix, ok := strings.Cut(pattern, "*"); ok {
		base = prefix + seq + suffix
	}
	name := path.Join("/", mfs.cleanPath(dir), base)
	if err := mfs.ensureParentDirLocked(mfs.cleanPath(name)); err != nil {
		return nil, err
	}
	return &memFile{owner: mfs, name: name}, nil
}

// Rename implements FileSystem. Renaming a directory moves everything below it.
func (mfs *MapFileSystem) Rename(oldpath, newpath string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	oldpath, newpath = mfs.cleanPath(oldpath), mfs.cleanPath(newpath)
	moved := false
	for p, file := range mfs.mapFS {
		switch {
		case p == oldpath:
			delete(mfs.mapFS, p)
			mfs.mapFS[newpath] = file
			moved = true
		case strings.HasPrefix(p, oldpath+"/"):
			delete(mfs.mapFS, p)
			mfs.mapFS[newpath+strings.TrimPrefix(p, oldpath)] = file
			moved = true
		}
	}
	if !moved {
		return &fs.PathError{Op: "rename", Path: oldpath, Err: fs.ErrNotExist}
	}
	return nil
}

// Remove implements FileSystem.
func (mfs *MapFileSystem) Remove(name string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	name = mfs.cleanPath(name)
	if _, exists := mfs.mapFS[name]; exists {
		delete(mfs.mapFS, name)
		return nil
	}
	keep := name + "/.keep"
	if _, exists := mfs.mapFS[keep]; exists {
		for p := range mfs.mapFS {
			if strings.HasPrefix(p, name+"/") && p != keep {
				return &fs.PathError{Op: "remove", Path: name, Err: fmt.Errorf("directory not empty")}
			}
		}
		delete(mfs.mapFS, keep)
		return nil
	}
	return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
}

// RemoveAll implements FileSystem.
func (mfs *MapFileSystem) RemoveAll(name string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	name = mfs.cleanPath(name)
	for p := range mfs.mapFS {
		if p == name || strings.HasPrefix(p, name+"/") {
			delete(mfs.mapFS, p)
		}
	}
	return nil
}

// Symlink implements FileSystem.
func (mfs *MapFileSystem) Symlink(oldname, newname string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	newname = mfs.cleanPath(newname)
	if _, exists := mfs.mapFS[newname]; exists {
		return &fs.PathError{Op: "symlink", Path: newname, Err: fs.ErrExist}
	}
	if err := mfs.ensureParentDirLocked(newname); err != nil {
		return err
	}
	mfs.mapFS[newname] = &fstest.MapFile{
		Data:    []byte(oldname),
		Mode:    fs.ModeSymlink | 0o777,
		ModTime: mfs.modTime,
	}
	return nil
}

// Readlink implements FileSystem.
func (mfs *MapFileSystem) Readlink(name string) (string, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	name = mfs.cleanPath(name)
	file, exists := mfs.mapFS[name]
	if !exists || file.Mode&fs.ModeSymlink == 0 {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: fs.ErrInvalid}
	}
	return string(file.Data), nil
}

// MkdirAll implements FileSystem.
func (mfs *MapFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	path = mfs.cleanPath(path)
	if file, exists := mfs.mapFS[path]; exists && !file.Mode.IsDir() {
		return &fs.PathError{Op: "mkdir", Path: path, Err: fmt.Errorf("not a directory")}
	}
	mfs.addDirLocked(path, perm)
	return nil
}

// TempDir implements FileSystem.
func (mfs *MapFileSystem) TempDir() string {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return mfs.tempDir
}

// SetTempDir sets the temp directory path.
func (mfs *MapFileSystem) SetTempDir(dir string) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	mfs.tempDir = dir
}

// Stat implements FileSystem.
func (mfs *MapFileSystem) Stat(name string) (fs.FileInfo, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	return fs.Stat(mfs.mapFS, mfs.resolveLocked(mfs.cleanPath(name)))
}

// Lstat implements FileSystem. Symbolic links are reported, not followed.
func (mfs *MapFileSystem) Lstat(name string) (fs.FileInfo, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	name = mfs.cleanPath(name)
	if file, exists := mfs.mapFS[name]; exists && file.Mode&fs.ModeSymlink != 0 {
		return linkInfo{name: path.Base(name), file: file}, nil
	}
	return fs.Stat(mfs.mapFS, name)
}

// Exists implements FileSystem.
func (mfs *MapFileSystem) Exists(path string) bool {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	path = mfs.cleanPath(path)
	if _, exists := mfs.mapFS[path]; exists {
		return true
	}

	prefix := path + "/"
	for filePath := range mfs.mapFS {
		if strings.HasPrefix(filePath, prefix) {
			return true
		}
	}
	return false
}

// ReadDir implements FileSystem. Directory markers are hidden.
func (mfs *MapFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	entries, err := fs.ReadDir(mfs.mapFS, mfs.cleanPath(name))
	if err != nil {
		return nil, err
	}
	visible := entries[:0]
	for _, e := range entries {
		if e.Name() != ".keep" {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

// Open implements FileSystem.
func (mfs *MapFileSystem) Open(name string) (fs.File, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	return mfs.mapFS.Open(mfs.resolveLocked(mfs.cleanPath(name)))
}

// ListFiles returns all files in the MapFS for debugging.
func (mfs *MapFileSystem) ListFiles() map[string]string {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	result := make(map[string]string)
	for p, file := range mfs.mapFS {
		switch {
		case strings.HasSuffix(p, "/.keep") || p == ".keep":
			dirPath := path.Dir(p)
			if dirPath == "." {
				dirPath = "/"
			}
			result[dirPath] = "directory"
		case file.Mode&fs.ModeSymlink != 0:
			result[p] = "symlink -> " + string(file.Data)
		default:
			result[p] = fmt.Sprintf("file (%d bytes)", len(file.Data))
		}
	}
	return result
}

func (mfs *MapFileSystem) cleanPath(p string) string {
	cleaned := path.Clean(p)
	if !path.IsAbs(cleaned) {
		cleaned = "/" + cleaned
	}
	return strings.TrimPrefix(cleaned, "/")
}

// resolveLocked follows symbolic link entries until it reaches a path that
// is not a link.
func (mfs *MapFileSystem) resolveLocked(name string) string {
	for range 40 {
		file, exists := mfs.mapFS[name]
		if !exists || file.Mode&fs.ModeSymlink == 0 {
			return name
		}
		target := string(file.Data)
		if !path.IsAbs(target) {
			target = path.Join(path.Dir("/"+name), target)
		}
		name = mfs.cleanPath(target)
	}
	return name
}

func (mfs *MapFileSystem) addDirLocked(path string, mode fs.FileMode) {
	keepFile := path + "/.keep"
	if path == "" {
		keepFile = ".keep"
	}
	mfs.mapFS[keepFile] = &fstest.MapFile{
		Data:    []byte(""),
		Mode:    mode.Perm(),
		ModTime: mfs.modTime,
	}
}

func (mfs *MapFileSystem) ensureParentDirLocked(filePath string) error {
	dir := path.Dir(filePath)
	if dir == "." || dir == "/" || dir == "" {
		return nil
	}

	if file, exists := mfs.mapFS[dir]; exists && !file.Mode.IsDir() {
		return &fs.PathError{Op: "open", Path: filePath, Err: fmt.Errorf("not a directory")}
	}
	return nil
}

// memFile buffers writes until Close stores the content.
type memFile struct {
	owner  *MapFileSystem
	name   string
	buf    bytes.Buffer
	closed bool
}

func (f *memFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	return f.buf.Write(p)
}

func (f *memFile) Close() error {
	if f.closed {
		return fs.ErrClosed
	}
	f.closed = true
	return f.owner.WriteFile(f.name, f.buf.Bytes(), 0o600)
}

func (f *memFile) Name() string {
	return f.name
}

// linkInfo describes a symbolic link entry without following it.
type linkInfo struct {
	name string
	file *fstest.MapFile
}

func (i linkInfo) Name() string       { return i.name }
func (i linkInfo) Size() int64        { return int64(len(i.file.Data)) }
func (i linkInfo) Mode() fs.FileMode  { return i.file.Mode }
func (i linkInfo) ModTime() time.Time { return i.file.ModTime }
func (i linkInfo) IsDir() bool        { return false }
func (i linkInfo) Sys() any           { return nil }
