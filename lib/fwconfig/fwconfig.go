// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fwconfig

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DefaultDirectory is read when no directory is configured.
const DefaultDirectory = "/etc/sysfs_fw_loader/"

// DirectoryEnv names the environment variable that overrides
// DefaultDirectory.
const DirectoryEnv = "SYSFS_FW_LOADER_CONFIG_DIR"

// Record is one firmware mapping: the logical name to look for under
// the firmware-class directory, and the file to deliver. An empty File
// means "no firmware available".
type Record struct {
	Name string
	File string
}

// Error reports a config file or directory that could not be read or
// parsed.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Format is the syntax of a config file.
type Format uint8

const (
	// FormatJSON is JSONC; plain JSON is a subset.
	FormatJSON Format = iota
	FormatYAML
)

// FormatOf picks a Format from a file name's extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadDir reads every regular, non-hidden file in directory in name
// order and returns their records concatenated. Symlinks are followed;
// one that resolves to a directory is skipped like a directory. The first unreadable
// or malformed file stops the load.
func LoadDir(directory string) ([]Record, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, &Error{Path: directory, Err: err}
	}

	var records []Record
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(directory, entry.Name())

		mode := entry.Type()
		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				return nil, &Error{Path: path, Err: err}
			}
			mode = info.Mode()
		}
		if !mode.IsRegular() {
			continue
		}

		fileRecords, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		records = append(records, fileRecords...)
	}
	return records, nil
}

// LoadFile reads and parses one config file.
func LoadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	records, err := Parse(data, FormatOf(path))
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return records, nil
}

// Parse decodes one document in the given format.
func Parse(data []byte, format Format) ([]Record, error) {
	var document any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &document); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
	}

	switch value := document.(type) {
	case map[string]any:
		record, err := recordFrom(value)
		if err != nil {
			return nil, err
		}
		return []Record{record}, nil

	case []any:
		var records []Record
		for index, element := range value {
			object, ok := element.(map[string]any)
			if !ok {
				continue
			}
			record, err := recordFrom(object)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", index, err)
			}
			records = append(records, record)
		}
		return records, nil

	default:
		return nil, nil
	}
}

func recordFrom(object map[string]any) (Record, error) {
	name, ok := object["name"].(string)
	if !ok {
		return Record{}, fmt.Errorf("mapping needs a string \"name\", got %v", object["name"])
	}

	var file string
	switch value := object["file"].(type) {
	case nil:
	case string:
		file = value
	default:
		return Record{}, fmt.Errorf("mapping %q: \"file\" must be a string, got %T", name, value)
	}

	return Record{Name: name, File: file}, nil
}
