package workspace

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/grovetools/wsync/errors"
	"golang.org/x/text/encoding/htmlindex"
)

// linkProject symlinks target to the project source.
func (s *Store) linkProject(unit Unit, target string) ImportResult {
	if _, err := os.Stat(unit.Source); err != nil {
		return Failed(target, errors.ImportFailed(unit.Key(), err))
	}

	status := StatusImported
	info, err := os.Lstat(target)
	switch {
	case err == nil && info.Mode()&os.ModeSymlink != 0:
		dest, err := os.Readlink(target)
		if err != nil {
			return Failed(target, errors.ImportFailed(unit.Key(), err))
		}
		if filepath.Clean(dest) == filepath.Clean(unit.Source) {
			return ImportResult{Status: StatusExisting, Path: target}
		}
		if err := os.Remove(target); err != nil {
			return Failed(target, errors.ImportFailed(unit.Key(), err))
		}
		status = StatusReplaced
	case err == nil:
		return Failed(target, errors.ImportConflict(unit.Key(), target))
	case !os.IsNotExist(err):
		return Failed(target, errors.ImportFailed(unit.Key(), err))
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return Failed(target, errors.ImportFailed(unit.Key(), err))
	}
	if err := os.Symlink(unit.Source, target); err != nil {
		return Failed(target, errors.ImportFailed(unit.Key(), err))
	}
	return ImportResult{Status: status, Path: target}
}

// copyProject copies the project tree, skipping excluded paths. An existing
// target is left untouched.
func (s *Store) copyProject(unit Unit, target string) ImportResult {
	if _, err := os.Lstat(target); err == nil {
		return ImportResult{Status: StatusExisting, Path: target}
	}
	info, err := os.Stat(unit.Source)
	if err != nil {
		return Failed(target, errors.ImportFailed(unit.Key(), err))
	}
	if !info.IsDir() {
		return Failed(target, errors.ImportFailed(unit.Key(), fmt.Errorf("%s is not a directory", unit.Source)))
	}

	err = filepath.WalkDir(unit.Source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(unit.Source, path)
		if err != nil {
			return err
		}
		if rel != "." {
			excluded, err := s.exclude.MatchesOrParentMatches(filepath.ToSlash(rel))
			if err != nil {
				return err
			}
			if excluded {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		dest := filepath.Join(target, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(dest, 0755)
		case d.Type()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, dest)
		default:
			return copyFile(path, dest)
		}
	})
	if err != nil {
		_ = os.RemoveAll(target)
		return Failed(target, errors.ImportFailed(unit.Key(), err))
	}
	return ImportResult{Status: StatusImported, Path: target}
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// writeResource creates a file holding the unit content in its encoding.
func (s *Store) writeResource(unit Unit, target string) ImportResult {
	status := StatusImported
	if info, err := os.Stat(target); err == nil {
		if info.IsDir() {
			return Failed(target, errors.ImportConflict(unit.Key(), target))
		}
		if !unit.Force {
			return ImportResult{Status: StatusExisting, Path: target}
		}
		status = StatusReplaced
	}

	data, err := Encode(unit.Content, unit.Encoding)
	if err != nil {
		return Failed(target, errors.ImportFailed(unit.Key(), err))
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return Failed(target, errors.ImportFailed(unit.Key(), err))
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return Failed(target, errors.ImportFailed(unit.Key(), err))
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return Failed(target, errors.ImportFailed(unit.Key(), err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return Failed(target, errors.ImportFailed(unit.Key(), err))
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return Failed(target, errors.ImportFailed(unit.Key(), err))
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return Failed(target, errors.ImportFailed(unit.Key(), err))
	}
	return ImportResult{Status: status, Path: target}
}

// Encode converts UTF-8 content to the named charset (WHATWG labels such as
// "utf-8", "iso-8859-1", "windows-1252", "shift_jis").
func Encode(content, charset string) ([]byte, error) {
	if charset == "" || strings.EqualFold(charset, DefaultEncoding) {
		return []byte(content), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", charset, err)
	}
	out, err := enc.NewEncoder().String(content)
	if err != nil {
		return nil, fmt.Errorf("content cannot be encoded as %s: %w", charset, err)
	}
	return []byte(out), nil
}
