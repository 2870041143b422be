package relocate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/signstage/internal/ledger"
)

const tempSuffix = ".tmp"

// Mover moves single files. The zero value renames with os.Rename and
// names temp files with UUIDv7s.
type Mover struct {
	// Rename overrides os.Rename. Tests use it to simulate cross-volume moves.
	Rename func(oldpath, newpath string) error

	// IDs names temp files for cross-volume copies.
	IDs IDGenerator
}

// Move relocates src to dst, replacing dst if it exists.
func (m *Mover) Move(src, dst string) error {
	err := m.rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return err
	}
	return m.copyAcross(src, dst)
}

func (m *Mover) rename(oldpath, newpath string) error {
	if m.Rename != nil {
		return m.Rename(oldpath, newpath)
	}
	return os.Rename(oldpath, newpath)
}

func (m *Mover) ids() IDGenerator {
	if m.IDs == nil {
		return UUIDv7Generator{}
	}
	return m.IDs
}

// copyAcross copies src into dst's directory under a temp name, renames the
// copy over dst, and removes src. The temp rename stays on one volume.
func (m *Mover) copyAcross(src, dst string) (err error) {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("cross-volume move of %s: not a regular file", src)
	}

	tmp := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+"."+m.ids().Generate()+tempSuffix)
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if err := copyFile(src, tmp, info.Mode().Perm()); err != nil {
		return fmt.Errorf("cross-volume copy: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("cross-volume copy: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("cross-volume copy: remove source: %w", err)
	}
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// isStagingTemp reports whether name is a leftover temp file from an
// interrupted cross-volume copy (.<name>.<id>.tmp) or ledger save
// (.dll_mapping.json.<random>).
func isStagingTemp(name string) bool {
	if strings.HasPrefix(name, "."+ledger.FileName+".") {
		return true
	}
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, tempSuffix) &&
		strings.Count(name, ".") >= 3
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
