// Package tarball creates compressed tar archives of directory trees.
//
// Archives are written to a temporary file next to the destination and renamed
// into place only after the writer chain has been closed successfully, so a
// partially written archive is never left behind under the final name. Entry
// names inside an archive are always relative to a caller-chosen top-level
// label; absolute filesystem paths never leak into the archive.
package tarball

import (
	"archive/tar"
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/stackvault/stackvault/pkg/pool"
)

const ioBufferSize = 256 * 1024

// tmpPattern names in-flight archive files. They live in the destination
// directory so the final rename stays on one filesystem.
const tmpPattern = ".stackvault-*.tmp"

// Compressor writes compressed tar archives in a fixed format and level.
// It is safe for concurrent use.
type Compressor struct {
	format  Format
	level   Level
	bufPool *pool.FixedBufferPool
}

// NewCompressor creates a Compressor for the given format and level.
func NewCompressor(format Format, level Level) *Compressor {
	return &Compressor{
		format:  format,
		level:   level,
		bufPool: pool.NewFixedBuffer(ioBufferSize),
	}
}

// Format returns the compressor's archive format.
func (c *Compressor) Format() Format {
	return c.format
}

// CompressFiltered archives srcDir into destPath. Any entry whose basename is
// in the exclude set is omitted, at every directory level; excluded
// directories are skipped whole. Entries are stored under rootName instead of
// the source path, so the archive layout is independent of where the source
// lives on disk.
func (c *Compressor) CompressFiltered(ctx context.Context, srcDir, destPath string, exclude map[string]struct{}, rootName string) error {
	return c.write(ctx, srcDir, destPath, exclude, rootName)
}

// CompressDir archives the full srcDir tree into destPath under rootName.
func (c *Compressor) CompressDir(ctx context.Context, srcDir, destPath, rootName string) error {
	return c.write(ctx, srcDir, destPath, nil, rootName)
}

func (c *Compressor) write(ctx context.Context, srcDir, destPath string, exclude map[string]struct{}, rootName string) (retErr error) {
	if _, err := os.Stat(srcDir); err != nil {
		return fmt.Errorf("source directory not accessible: %w", err)
	}

	tmpF, err := os.CreateTemp(filepath.Dir(destPath), tmpPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tmpPath := tmpF.Name()

	// On any failure the temp file must not survive, and destPath must not
	// exist in a half-written state.
	defer func() {
		if retErr != nil {
			tmpF.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := c.writeEntries(ctx, tmpF, srcDir, exclude, rootName); err != nil {
		return err
	}

	if err := tmpF.Close(); err != nil {
		return fmt.Errorf("failed to close temp archive: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp archive to final path: %w", err)
	}
	return nil
}

func (c *Compressor) writeEntries(ctx context.Context, w io.Writer, srcDir string, exclude map[string]struct{}, rootName string) (retErr error) {
	bufWriter := bufio.NewWriterSize(w, ioBufferSize)

	compressedWriter, err := c.newCompressedWriter(bufWriter)
	if err != nil {
		return err
	}
	tarWriter := tar.NewWriter(compressedWriter)

	defer func() {
		if err := tarWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("tar writer close failed: %w", err)
		}
		if err := compressedWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("compressed writer close failed: %w", err)
		}
		if err := bufWriter.Flush(); err != nil && retErr == nil {
			retErr = fmt.Errorf("buffer flush failed: %w", err)
		}
	}()

	bufPtr := c.bufPool.Get()
	defer c.bufPool.Put(bufPtr)

	return filepath.WalkDir(srcDir, func(absPath string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			return walkErr
		}

		if _, excluded := exclude[d.Name()]; excluded && absPath != srcDir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(srcDir, absPath)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", absPath, err)
		}
		entryName := rootName
		if rel != "." {
			entryName = path.Join(rootName, filepath.ToSlash(rel))
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info for %s: %w", absPath, err)
		}

		var linkTarget string
		if info.Mode()&os.ModeSymlink != 0 {
			if linkTarget, err = os.Readlink(absPath); err != nil {
				return fmt.Errorf("failed to read link %s: %w", absPath, err)
			}
		}

		header, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return fmt.Errorf("failed to create tar header for %s: %w", entryName, err)
		}
		header.Name = entryName
		if info.IsDir() {
			header.Name += "/"
		}

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header for %s: %w", entryName, err)
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(absPath)
		if err != nil {
			return fmt.Errorf("failed to open file %s: %w", absPath, err)
		}
		defer f.Close()

		if _, err := io.CopyBuffer(tarWriter, f, *bufPtr); err != nil {
			return fmt.Errorf("failed to archive file %s: %w", absPath, err)
		}
		return f.Close()
	})
}

func (c *Compressor) newCompressedWriter(w io.Writer) (io.WriteCloser, error) {
	if c.format == TarZst {
		var encoderLevel zstd.EncoderLevel
		switch c.level {
		case Fastest:
			encoderLevel = zstd.SpeedFastest
		case Better:
			encoderLevel = zstd.SpeedBetterCompression
		case Best:
			encoderLevel = zstd.SpeedBestCompression
		default:
			encoderLevel = zstd.SpeedDefault
		}
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(encoderLevel))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return zw, nil
	}

	var lvl int
	switch c.level {
	case Fastest:
		lvl = pgzip.BestSpeed
	case Better:
		lvl = 6 // Good balance
	case Best:
		lvl = pgzip.BestCompression
	default:
		lvl = pgzip.DefaultCompression
	}
	gw, err := pgzip.NewWriterLevel(w, lvl)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	return gw, nil
}
