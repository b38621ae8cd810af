package server

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolveClientDir locates the static client bundle. An explicitly configured
// directory must exist; otherwise a "client" directory next to the working
// directory or the executable is used.
func ResolveClientDir(configured string) (string, error) {
	if configured != "" {
		info, err := os.Stat(configured)
		if err != nil {
			return "", fmt.Errorf("resolve client dir: %w", err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("resolve client dir: %s is not a directory", configured)
		}
		return filepath.Abs(configured)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve client dir: %w", err)
	}
	if dir, ok := resolveClientDirFrom(cwd); ok {
		return dir, nil
	}
	exePath, err := os.Executable()
	if err == nil {
		if dir, ok := resolveClientDirFrom(filepath.Dir(exePath)); ok {
			return dir, nil
		}
	}
	return "", fmt.Errorf("client directory not found")
}

func resolveClientDirFrom(base string) (string, bool) {
	candidates := []string{
		filepath.Join(base, "client"),
		filepath.Join(base, "..", "client"),
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || !info.IsDir() {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		return abs, true
	}
	return "", false
}
