package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/instrumenta/pkg/engine"
)

var validate = validator.New()

// IsManifestFile reports whether path has a YAML extension.
func IsManifestFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadManifests loads tasks from files and directories. Directories are
// walked recursively for YAML files in lexical order.
func LoadManifests(paths []string) ([]*engine.Task, error) {
	var tasks []*engine.Task
	seen := map[string]string{}

	for _, path := range paths {
		files, err := manifestFiles(path)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			loaded, err := LoadFile(file)
			if err != nil {
				return nil, err
			}
			for _, t := range loaded {
				if prev, dup := seen[t.Label()]; dup {
					return nil, engine.NewConfigurationError(
						fmt.Sprintf("task %s defined in both %s and %s", t.Label(), prev, file), nil,
					).WithCode(engine.ErrCodeInvalidField)
				}
				seen[t.Label()] = file
			}
			tasks = append(tasks, loaded...)
		}
	}
	return tasks, nil
}

func manifestFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, engine.NewConfigurationError(fmt.Sprintf("cannot read manifest path %s", path), err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsManifestFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, engine.NewConfigurationError(fmt.Sprintf("failed to walk %s", path), err)
	}
	sort.Strings(files)
	return files, nil
}

// LoadFile loads every task in a manifest file.
func LoadFile(path string) ([]*engine.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, engine.NewConfigurationError(fmt.Sprintf("cannot open manifest %s", path), err)
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse decodes and validates the YAML documents in r. source names the
// input in error messages.
func Parse(r io.Reader, source string) ([]*engine.Task, error) {
	dec := yaml.NewDecoder(r)
	var tasks []*engine.Task

	for doc := 1; ; doc++ {
		var m Manifest
		err := dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, engine.NewConfigurationError(
				fmt.Sprintf("%s: document %d is not valid YAML", source, doc), err,
			).WithResource(source)
		}
		if m.Kind == "" && m.Version == "" && m.Spec == nil {
			continue
		}
		if err := validate.Struct(&m); err != nil {
			return nil, engine.NewConfigurationError(
				fmt.Sprintf("%s: document %d is not a valid manifest", source, doc), err,
			).WithResource(source).WithCode(engine.ErrCodeInvalidField)
		}
		tasks = append(tasks, m.Task())
	}
	return tasks, nil
}
