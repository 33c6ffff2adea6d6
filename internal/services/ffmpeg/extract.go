package ffmpeg

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"
)

// minBinarySize rejects truncated or placeholder executables
const minBinarySize = 1000

type archiveKind int

const (
	kindUnknown archiveKind = iota
	kindZip
	kindTarXz
	kindTarGz
)

var (
	zipMagic  = []byte("PK\x03\x04")
	xzMagic   = []byte("\xfd7zXZ\x00")
	gzipMagic = []byte("\x1f\x8b")
)

// detectArchive sniffs the archive type from its header
func detectArchive(fs afero.Fs, path string) (archiveKind, error) {
	f, err := fs.Open(path)
	if err != nil {
		return kindUnknown, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	header := make([]byte, 6)
	n, _ := io.ReadFull(f, header)
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, zipMagic):
		return kindZip, nil
	case bytes.HasPrefix(header, xzMagic):
		return kindTarXz, nil
	case bytes.HasPrefix(header, gzipMagic):
		return kindTarGz, nil
	}
	return kindUnknown, fmt.Errorf("unrecognized archive format")
}

// extractArchive unpacks a zip, tar.xz or tar.gz archive into dest
func extractArchive(fs afero.Fs, archivePath, dest string) error {
	kind, err := detectArchive(fs, archivePath)
	if err != nil {
		return err
	}

	if err := fs.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("failed to create extraction directory: %w", err)
	}

	switch kind {
	case kindZip:
		return extractZip(fs, archivePath, dest)
	case kindTarXz:
		return extractTar(fs, archivePath, dest, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		})
	default:
		return extractTar(fs, archivePath, dest, func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		})
	}
}

func extractZip(fs afero.Fs, archivePath, dest string) error {
	f, err := fs.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("failed to read zip archive: %w", err)
	}

	for _, entry := range zr.File {
		target, err := safeJoin(dest, entry.Name)
		if err != nil {
			return err
		}
		if entry.FileInfo().IsDir() {
			if err := fs.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("failed to open zip entry %s: %w", entry.Name, err)
		}
		err = writeFile(fs, target, rc, entry.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTar(fs afero.Fs, archivePath, dest string, decompress func(io.Reader) (io.Reader, error)) error {
	f, err := fs.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	r, err := decompress(f)
	if err != nil {
		return fmt.Errorf("failed to decompress archive: %w", err)
	}

	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar archive: %w", err)
		}

		target, err := safeJoin(dest, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := fs.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := writeFile(fs, target, tr, os.FileMode(header.Mode)); err != nil {
				return err
			}
		}
	}
}

// safeJoin rejects entries that would escape the extraction directory
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	if target != filepath.Clean(dest) && !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}
	return target, nil
}

func writeFile(fs afero.Fs, path string, r io.Reader, mode os.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if mode.Perm() == 0 {
		mode = 0644
	}

	out, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return out.Close()
}

// findExecutable locates the muxer inside an extracted archive. It prefers an
// exact name match, then one under a bin directory, then any executable
// whose name mentions ffmpeg.
func findExecutable(fs afero.Fs, root, name string) (string, error) {
	var exact, inBin, loose string

	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		base := info.Name()
		switch {
		case base == name && filepath.Base(filepath.Dir(path)) == "bin":
			if inBin == "" {
				inBin = path
			}
		case base == name:
			if exact == "" {
				exact = path
			}
		case loose == "" && strings.Contains(strings.ToLower(base), "ffmpeg") && isExecutable(info, name):
			loose = path
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to search extracted archive: %w", err)
	}

	for _, candidate := range []string{exact, inBin, loose} {
		if candidate != "" {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no %s executable found in archive", name)
}

func isExecutable(info os.FileInfo, name string) bool {
	if strings.HasSuffix(name, ".exe") {
		return strings.HasSuffix(strings.ToLower(info.Name()), ".exe")
	}
	return info.Mode().Perm()&0111 != 0
}

// install copies the executable into binDir and marks it executable. The copy
// is staged in a temp file next to the destination and renamed into place,
// so the destination is either absent or complete.
func install(fs afero.Fs, src, binDir, name string) (string, error) {
	info, err := fs.Stat(src)
	if err != nil {
		return "", fmt.Errorf("failed to stat extracted binary: %w", err)
	}
	if info.Size() <= minBinarySize {
		return "", fmt.Errorf("extracted binary is only %d bytes", info.Size())
	}

	if err := fs.MkdirAll(binDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create bin directory: %w", err)
	}

	in, err := fs.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open extracted binary: %w", err)
	}
	defer in.Close()

	tmp, err := afero.TempFile(fs, binDir, name+".tmp-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}
	staged := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		_ = fs.Remove(staged)
		return "", fmt.Errorf("failed to write %s: %w", staged, err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(staged)
		return "", fmt.Errorf("failed to write %s: %w", staged, err)
	}

	if err := fs.Chmod(staged, 0755); err != nil {
		_ = fs.Remove(staged)
		return "", fmt.Errorf("failed to mark binary executable: %w", err)
	}

	written, err := fs.Stat(staged)
	if err != nil || written.Size() != info.Size() {
		_ = fs.Remove(staged)
		return "", fmt.Errorf("installed binary failed size check")
	}

	dest := filepath.Join(binDir, name)
	if err := fs.Rename(staged, dest); err != nil {
		_ = fs.Remove(staged)
		return "", fmt.Errorf("failed to move binary into place: %w", err)
	}
	return dest, nil
}
