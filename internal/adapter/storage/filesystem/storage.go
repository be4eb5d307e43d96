package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/GoArmGo/PhotoApp/internal/core/ports"
)

// Storage хранит объекты файлами в локальном каталоге.
// URL-режим не поддерживается: фото отдаются только байтами.
type Storage struct {
	basePath string
}

var _ ports.ObjectStorage = (*Storage)(nil)

// NewStorage создает каталог хранилища, если его еще нет.
func NewStorage(basePath string) (*Storage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("filesystem storage: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("filesystem storage: create base directory: %w", err)
	}
	return &Storage{basePath: abs}, nil
}

func (s *Storage) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("filesystem storage: invalid object key %q", key)
	}
	return filepath.Join(s.basePath, key), nil
}

// Put записывает объект во временный файл и атомарно переименовывает его.
func (s *Storage) Put(_ context.Context, key string, data []byte, _ string) error {
	fullPath, err := s.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.basePath, ".upload-*")
	if err != nil {
		return fmt.Errorf("filesystem storage: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("filesystem storage: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filesystem storage: close %s: %w", key, err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filesystem storage: rename %s: %w", key, err)
	}
	return nil
}

func (s *Storage) GetBytes(_ context.Context, key string) ([]byte, error) {
	fullPath, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ports.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("filesystem storage: read %s: %w", key, err)
	}
	return data, nil
}

func (s *Storage) URL(_ context.Context, _ string) (string, error) {
	return "", ports.ErrURLUnsupported
}

func (s *Storage) Exists(_ context.Context, key string) (bool, error) {
	fullPath, err := s.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("filesystem storage: stat %s: %w", key, err)
	}
	return true, nil
}

// Delete удаляет файл; отсутствие файла ошибкой не считается.
func (s *Storage) Delete(_ context.Context, key string) error {
	fullPath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("filesystem storage: delete %s: %w", key, err)
	}
	return nil
}
