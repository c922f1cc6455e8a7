package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func readJson5[T any](path string, out *T) (bool, error) {
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return false, nil
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// ReadConfig reads the json5 file at path and merges <name>.local.<ext> from
// the same directory over it. It returns os.ErrNotExist when neither exists.
func ReadConfig[T any](path string) (T, error) {
	var out T
	found, err := readJson5(path, &out)
	if err != nil {
		return out, err
	}

	ext := filepath.Ext(path)
	localPath := strings.TrimSuffix(path, ext) + ".local" + ext
	var override T
	foundLocal, err := readJson5(localPath, &override)
	if err != nil {
		return out, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, fmt.Errorf("merge %s: %w", localPath, err)
		}
		slog.Info("merging config with local overrides", "local", localPath)
	}

	if !found && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively looks for name in dir and then in every parent of dir, the
// nearest directory holding the config wins.
func ReadRecursively[T any](dir, name string) (T, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		var out T
		return out, err
	}
	for {
		cfg, err := ReadConfig[T](filepath.Join(current, name))
		if !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return cfg, os.ErrNotExist
		}
		current = parent
	}
}
