package tarball

import "fmt"

// Format selects the archive container and compression codec.
type Format int

const (
	// TarGz produces gzip-compressed tar archives (.tar.gz).
	TarGz Format = iota
	// TarZst produces zstd-compressed tar archives (.tar.zst).
	TarZst
)

// String returns the canonical name of the format.
func (f Format) String() string {
	switch f {
	case TarGz:
		return "tar.gz"
	case TarZst:
		return "tar.zst"
	default:
		return fmt.Sprintf("unknown_format(%d)", int(f))
	}
}

// Extension returns the file name extension including the leading dot.
func (f Format) Extension() string {
	return "." + f.String()
}

// ParseFormat maps a configured format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "tar.gz", "gz":
		return TarGz, nil
	case "tar.zst", "zst":
		return TarZst, nil
	default:
		return TarGz, fmt.Errorf("invalid compression format: %q. Must be 'tar.gz' or 'tar.zst'", s)
	}
}

// Level selects the compression effort.
type Level int

const (
	Default Level = iota
	Fastest
	Better
	Best
)

// ParseLevel maps a configured level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "", "default":
		return Default, nil
	case "fastest":
		return Fastest, nil
	case "better":
		return Better, nil
	case "best":
		return Best, nil
	default:
		return Default, fmt.Errorf("invalid compression level: %q. Must be 'default', 'fastest', 'better' or 'best'", s)
	}
}
