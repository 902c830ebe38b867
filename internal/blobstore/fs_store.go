package blobstore

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/zsiec/gre2g/internal/errors"
	"github.com/zsiec/gre2g/internal/logger"
	"github.com/zsiec/gre2g/internal/mappingtable"
	"github.com/zsiec/gre2g/internal/metrics"
)

// FileSystemStore keeps levels as directories under a root directory.
// It is meant for a single writer and takes no locks.
type FileSystemStore struct {
	root  string
	codec mappingtable.Codec
	log   logger.Logger

	removeAll func(string) error
}

// NewFileSystemStore opens a store rooted at root. The store is not
// touched until the first call; use Initialize to create it.
func NewFileSystemStore(root string, format mappingtable.Format, log logger.Logger) (*FileSystemStore, error) {
	if root == "" {
		return nil, errors.NewValidationError("blob store root must not be empty")
	}
	codec, err := mappingtable.CodecFor(format)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &FileSystemStore{
		root:  root,
		codec: codec,
		log:   log.WithField("component", "blobstore"),

		removeAll: os.RemoveAll,
	}, nil
}

// Root returns the root directory.
func (s *FileSystemStore) Root() string { return s.root }

func (s *FileSystemStore) Initialize() (err error) {
	defer func() { metrics.RecordStoreOperation("initialize", err) }()

	if err := os.RemoveAll(s.root); err != nil {
		return errors.WrapIOError(err, "failed to remove blob store")
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return errors.WrapIOError(err, "failed to create blob store")
	}
	if err := s.saveTable(s.root, mappingtable.New()); err != nil {
		return err
	}

	s.log.WithField("root", s.root).Info("Blob store initialized")
	return nil
}

// Resolve translates a user facing path into file-system ids.
func (s *FileSystemStore) Resolve(path []string) (FSPath, error) {
	elems := make([]string, 0, len(path))
	dir := s.root
	for _, name := range path {
		tbl, err := s.loadTable(dir)
		if err != nil {
			if errors.IsNotFound(err) {
				return FSPath{}, nil
			}
			return FSPath{}, err
		}
		id, ok := tbl.Lookup(name)
		if !ok {
			return FSPath{}, nil
		}
		elems = append(elems, id)
		dir = filepath.Join(dir, id)
	}
	return FSPath{Elems: elems, Exists: true}, nil
}

// AbsPath returns the location of a resolved path on disk.
func (s *FileSystemStore) AbsPath(p FSPath) string {
	return filepath.Join(append([]string{s.root}, p.Elems...)...)
}

func (s *FileSystemStore) GetLevelContent(path []string) ([]string, error) {
	dir, err := s.levelDir(path)
	if err != nil {
		return nil, err
	}
	tbl, err := s.loadTable(dir)
	if err != nil {
		return nil, err
	}
	return tbl.Names(), nil
}

func (s *FileSystemStore) ForceAddLevel(path []string, useHash bool) (err error) {
	defer func() { metrics.RecordStoreOperation("force_add_level", err) }()

	for i := range path {
		prefix := path[:i+1]
		p, err := s.Resolve(prefix)
		if err != nil {
			return err
		}
		if p.Exists {
			continue
		}

		parentDir, err := s.levelDir(prefix[:i])
		if err != nil {
			return err
		}
		id, err := s.register(parentDir, path[i], useHash, func(dir string) error {
			if err := os.Mkdir(dir, 0o755); err != nil {
				return errors.WrapIOError(err, "failed to create level directory")
			}
			return s.saveTable(dir, mappingtable.New())
		})
		if err != nil {
			return err
		}

		s.log.WithFields(map[string]interface{}{
			"level_path": JoinPath(prefix),
			"fs_id":      id,
		}).Debug("Level added")
	}
	return nil
}

func (s *FileSystemStore) DeleteLevel(path []string) (err error) {
	if len(path) == 0 {
		return nil
	}
	defer func() { metrics.RecordStoreOperation("delete_level", err) }()

	dir, err := s.levelDir(path)
	if err != nil {
		return err
	}
	// The row goes only once the directory is gone, so a failed removal
	// never leaves an unlisted directory behind.
	if err := s.removeAll(dir); err != nil {
		return errors.WrapIOError(err, "failed to remove level directory")
	}
	if err := s.unregister(path); err != nil {
		return err
	}

	s.log.WithField("level_path", JoinPath(path)).Info("Level deleted")
	return nil
}

func (s *FileSystemStore) AddFile(path []string, data []byte, name string, useHash bool) (err error) {
	defer func() { metrics.RecordStoreOperation("add_file", err) }()

	dir, err := s.levelDir(path)
	if err != nil {
		return err
	}
	id, err := s.register(dir, name, useHash, func(file string) error {
		if err := os.WriteFile(file, data, 0o644); err != nil {
			return errors.WrapIOError(err, "failed to write file")
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.AddBytesWritten(len(data))

	s.log.WithFields(map[string]interface{}{
		"level_path": JoinPath(path),
		"name":       name,
		"fs_id":      id,
		"bytes":      len(data),
	}).Info("File added")
	return nil
}

func (s *FileSystemStore) DeleteFile(path []string) (err error) {
	defer func() { metrics.RecordStoreOperation("delete_file", err) }()

	file, err := s.filePath(path)
	if err != nil {
		return err
	}
	if err := s.removeAll(file); err != nil {
		return errors.WrapIOError(err, "failed to remove file")
	}
	if err := s.unregister(path); err != nil {
		return err
	}

	s.log.WithField("level_path", JoinPath(path)).Info("File deleted")
	return nil
}

func (s *FileSystemStore) GetFile(path []string) ([]byte, error) {
	file, err := s.filePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.WrapIOError(err, "failed to read file")
	}
	return data, nil
}

// Close releases nothing; the store holds no open handles between calls.
func (s *FileSystemStore) Close() error {
	return nil
}

// register adds name to the table in parentDir and creates the entry with
// create. The table is only saved once the entry exists on disk.
func (s *FileSystemStore) register(parentDir, name string, useHash bool, create func(abs string) error) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	tbl, err := s.loadTable(parentDir)
	if err != nil {
		return "", err
	}

	id := DeriveID(name, useHash)
	if id == mappingtable.FileName(s.codec) {
		return "", errors.NewValidationErrorf("name %q collides with the mapping table", name)
	}
	if err := tbl.Add(name, id); err != nil {
		return "", err
	}

	abs := filepath.Join(parentDir, id)
	if err := create(abs); err != nil {
		os.RemoveAll(abs)
		return "", err
	}
	if err := s.saveTable(parentDir, tbl); err != nil {
		os.RemoveAll(abs)
		return "", err
	}
	return id, nil
}

// unregister drops the last element of path from its parent table.
func (s *FileSystemStore) unregister(path []string) error {
	parentDir, err := s.levelDir(path[:len(path)-1])
	if err != nil {
		return err
	}
	tbl, err := s.loadTable(parentDir)
	if err != nil {
		return err
	}
	if _, ok := tbl.Remove(path[len(path)-1]); !ok {
		return errors.NewNotFoundError(fmt.Sprintf("path %q", JoinPath(path)))
	}
	return s.saveTable(parentDir, tbl)
}

// levelDir resolves path and checks that it names a level.
func (s *FileSystemStore) levelDir(path []string) (string, error) {
	abs, info, err := s.stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", errors.NewValidationErrorf("%q is a file, not a level", JoinPath(path))
	}
	return abs, nil
}

// filePath resolves path and checks that it names a file.
func (s *FileSystemStore) filePath(path []string) (string, error) {
	if len(path) == 0 {
		return "", errors.NewValidationError("file path must not be empty")
	}
	abs, info, err := s.stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", errors.NewValidationErrorf("%q is a level, not a file", JoinPath(path))
	}
	return abs, nil
}

func (s *FileSystemStore) stat(path []string) (string, os.FileInfo, error) {
	p, err := s.Resolve(path)
	if err != nil {
		return "", nil, err
	}
	if !p.Exists {
		return "", nil, errors.NewNotFoundError(fmt.Sprintf("path %q", JoinPath(path)))
	}
	abs := s.AbsPath(p)
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, errors.WrapNotFoundError(err, fmt.Sprintf("path %q", JoinPath(path)))
		}
		return "", nil, errors.WrapIOError(err, "failed to stat entry")
	}
	return abs, info, nil
}

func (s *FileSystemStore) loadTable(dir string) (*mappingtable.Table, error) {
	tbl, err := mappingtable.Load(dir, s.codec)
	if err != nil {
		// A file in the middle of a path shows up as ENOTDIR.
		if os.IsNotExist(err) || stderrors.Is(err, syscall.ENOTDIR) {
			return nil, errors.WrapNotFoundError(err, "mapping table in "+dir)
		}
		return nil, errors.WrapIOError(err, "failed to load mapping table")
	}
	return tbl, nil
}

func (s *FileSystemStore) saveTable(dir string, tbl *mappingtable.Table) error {
	if err := mappingtable.Save(dir, s.codec, tbl); err != nil {
		return errors.WrapIOError(err, "failed to save mapping table")
	}
	return nil
}
