package extensions

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxArchiveFileSize bounds a single extracted file to guard against
// decompression bombs in untrusted archives.
const maxArchiveFileSize = 64 << 20

// ErrNoManifest indicates an archive without a root-level manifest.
var ErrNoManifest = errors.New("extensions: archive has no " + ManifestFile)

// ExtractArchive unpacks a zip archive into dest. Entry paths are
// validated against traversal outside dest before anything is written.
func ExtractArchive(archivePath, dest string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("extensions: open archive: %w", err)
	}
	defer reader.Close()

	hasManifest := false
	for _, f := range reader.File {
		if f.Name == ManifestFile {
			hasManifest = true
		}
		if !validArchivePath(f.Name) {
			return fmt.Errorf("extensions: archive entry %q escapes the extraction root", f.Name)
		}
	}
	if !hasManifest {
		return ErrNoManifest
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("extensions: create extraction dir: %w", err)
	}
	for _, f := range reader.File {
		if err := extractEntry(f, dest); err != nil {
			return err
		}
	}
	return nil
}

func validArchivePath(name string) bool {
	if name == "" || filepath.IsAbs(name) || strings.Contains(name, "\\") {
		return false
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	return clean != ".." && !strings.HasPrefix(clean, ".."+string(os.PathSeparator))
}

func extractEntry(f *zip.File, dest string) error {
	target := filepath.Join(dest, filepath.FromSlash(f.Name))
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("extensions: open archive entry %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(src, maxArchiveFileSize)); err != nil {
		return fmt.Errorf("extensions: extract %s: %w", f.Name, err)
	}
	return nil
}

// PackageArchive zips an extension directory into an installable archive.
// The manifest must exist at the directory root.
func PackageArchive(dir, outPath string) error {
	if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err != nil {
		return ErrNoManifest
	}
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("extensions: create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		_ = zw.Close()
		return fmt.Errorf("extensions: package %s: %w", dir, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("extensions: finalize archive: %w", err)
	}
	return nil
}
