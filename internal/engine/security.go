package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxScriptBytes is the largest audit script that will be uploaded (1 MB).
const MaxScriptBytes int64 = 1 << 20

// resolveScript maps a script name to a path inside dir. Names must be
// relative and must not climb out of dir.
func resolveScript(dir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("script name must not be empty")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("script name must be relative to the scripts directory, got %q", name)
	}

	cleaned := filepath.Clean(name)
	for _, part := range strings.Split(cleaned, string(filepath.Separator)) {
		if part == ".." {
			return "", fmt.Errorf("path traversal (..) not allowed in script name %q", name)
		}
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("cannot resolve scripts directory %q: %w", dir, err)
	}
	return filepath.Join(absDir, cleaned), nil
}

// readScript reads a regular file of at most MaxScriptBytes.
// It opens before stat so the checked file is the one read.
func readScript(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("script not found: %s", path)
		}
		return nil, fmt.Errorf("cannot open script %q: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat script %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("refusing to read non-regular file %q (mode: %s)", path, info.Mode().Type())
	}
	if info.Size() > MaxScriptBytes {
		return nil, fmt.Errorf("script %q too large: %d bytes (max: %d)", path, info.Size(), MaxScriptBytes)
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxScriptBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading script %q: %w", path, err)
	}
	if int64(len(data)) > MaxScriptBytes {
		return nil, fmt.Errorf("script %q exceeded size limit during read", path)
	}
	return data, nil
}

// VerifyScriptsDirectory inspects the audit scripts directory for
// ownership and permission problems that would let other users change what
// runs with sudo. It returns warnings; an empty result means no findings.
func VerifyScriptsDirectory(dir string) []string {
	info, err := os.Lstat(dir)
	if err != nil {
		return []string{fmt.Sprintf("cannot stat scripts directory %q: %v", dir, err)}
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return []string{fmt.Sprintf("scripts directory %q is a symlink", dir)}
	}
	if !info.IsDir() {
		return []string{fmt.Sprintf("scripts path %q is not a directory", dir)}
	}

	var warnings []string
	warnings = append(warnings, writableWarnings("scripts directory", dir, info.Mode().Perm())...)

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return append(warnings, fmt.Sprintf("cannot resolve absolute path for %q: %v", dir, err))
	}
	if resolved, err := filepath.EvalSymlinks(absDir); err == nil {
		absDir = resolved
	}

	walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("error accessing %q during walk: %v", path, err))
			return nil
		}
		if path == dir {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			if w := symlinkWarning(path, absDir); w != "" {
				warnings = append(warnings, w)
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if fi.Mode().Perm()&0002 != 0 {
			warnings = append(warnings, fmt.Sprintf("script %q is world-writable (%04o)", path, fi.Mode().Perm()))
		}
		return nil
	})
	if walkErr != nil {
		warnings = append(warnings, fmt.Sprintf("walk error in scripts directory: %v", walkErr))
	}
	return warnings
}

func writableWarnings(what, path string, perm os.FileMode) []string {
	var warnings []string
	if perm&0002 != 0 {
		warnings = append(warnings, fmt.Sprintf("%s %q is world-writable (%04o)", what, path, perm))
	}
	if perm&0020 != 0 {
		warnings = append(warnings, fmt.Sprintf("%s %q is group-writable (%04o)", what, path, perm))
	}
	return warnings
}

func symlinkWarning(path, absDir string) string {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return fmt.Sprintf("symlink %q cannot be resolved: %v", path, err)
	}
	absTarget, _ := filepath.Abs(target)
	if absTarget != absDir && !strings.HasPrefix(absTarget, absDir+string(filepath.Separator)) {
		return fmt.Sprintf("symlink %q points outside scripts directory (-> %s)", path, absTarget)
	}
	return ""
}
