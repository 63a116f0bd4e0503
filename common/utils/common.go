package utils

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// ExpandHome replaces a leading "~" with the current user's home directory
func ExpandHome(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	return filepath.Join(HomeDir(), strings.TrimPrefix(p[1:], "/"))
}

// FindProjectRoot walks up from startDir until a directory containing go.mod
// is found. Returns startDir when none exists.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parentDir := filepath.Dir(dir)
		if parentDir == dir {
			return startDir
		}
		dir = parentDir
	}
}
