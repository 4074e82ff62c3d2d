package storageengine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"QuillDB/types"
)

// DatabaseManager maps database names to directories under the data root
// and owns the engine for the currently selected database.
type DatabaseManager struct {
	RootPath string

	currentDB string
	engine    *StorageEngine
}

func NewDatabaseManager(rootPath string) (*DatabaseManager, error) {
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data root: %w: %v", types.ErrIO, err)
	}
	return &DatabaseManager{RootPath: rootPath}, nil
}

func (dm *DatabaseManager) dbPath(name string) string {
	return filepath.Join(dm.RootPath, name)
}

// CreateDB creates a database directory.
func (dm *DatabaseManager) CreateDB(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty database name", types.ErrInvalidArgument)
	}
	path := dm.dbPath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("database %q: %w", name, types.ErrAlreadyExists)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create database %q: %w: %v", name, types.ErrIO, err)
	}
	return nil
}

// DropDB removes a database directory and everything in it. Dropping the
// current database deselects it.
func (dm *DatabaseManager) DropDB(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty database name", types.ErrInvalidArgument)
	}
	path := dm.dbPath(name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("database %q: %w", name, types.ErrNotFound)
	}
	if dm.currentDB == name {
		if dm.engine != nil {
			dm.engine.Close()
		}
		dm.engine = nil
		dm.currentDB = ""
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to drop database %q: %w: %v", name, types.ErrIO, err)
	}
	return nil
}

// UseDB selects a database, building the engine for its directory.
func (dm *DatabaseManager) UseDB(name string) (*StorageEngine, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty database name", types.ErrInvalidArgument)
	}
	path := dm.dbPath(name)
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("database %q: %w", name, types.ErrNotFound)
	}
	if dm.currentDB == name && dm.engine != nil {
		return dm.engine, nil
	}
	if dm.engine != nil {
		dm.engine.Close()
	}
	engine, err := NewStorageEngine(path)
	if err != nil {
		return nil, err
	}
	dm.currentDB = name
	dm.engine = engine
	return engine, nil
}

// ClearCurrentDB deselects the current database.
func (dm *DatabaseManager) ClearCurrentDB() {
	if dm.engine != nil {
		dm.engine.Close()
	}
	dm.engine = nil
	dm.currentDB = ""
}

// CurrentDB returns the selected database name ("" when none).
func (dm *DatabaseManager) CurrentDB() string {
	return dm.currentDB
}

// Engine returns the engine for the selected database, or nil.
func (dm *DatabaseManager) Engine() *StorageEngine {
	return dm.engine
}

// ListDatabases returns the database names under the root, sorted.
func (dm *DatabaseManager) ListDatabases() ([]string, error) {
	entries, err := os.ReadDir(dm.RootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read data root: %w: %v", types.ErrIO, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != "" && e.Name()[0] != '.' {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// DatabaseExists reports whether a database directory exists.
func (dm *DatabaseManager) DatabaseExists(name string) bool {
	if name == "" {
		return false
	}
	info, err := os.Stat(dm.dbPath(name))
	return err == nil && info.IsDir()
}
