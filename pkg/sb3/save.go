package sb3

import (
	"archive/zip"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/flate"

	"github.com/matzehuels/sb3min/pkg/errors"
	"github.com/matzehuels/sb3min/pkg/project"
)

// SaveOptions configures [Archive.Save].
type SaveOptions struct {
	// Overwrite allows replacing an existing destination file. The source
	// file itself can never be the destination.
	Overwrite bool

	Logger *log.Logger
}

// Output describes a written container.
type Output struct {
	Path         string `json:"path,omitempty"`
	ArchiveBytes int64  `json:"archive_bytes"`
	JSONBytes    int    `json:"json_bytes"`
}

// DefaultDestination returns the output path used when none is given:
// "dir/name.sb3" becomes "dir/name.min.sb3".
func DefaultDestination(source string) string {
	ext := filepath.Ext(source)
	return strings.TrimSuffix(source, ext) + ".min" + ext
}

// CheckDestination reports a DESTINATION_CONFLICT error if dest is the same
// file as source, or if dest exists and overwrite is false.
func CheckDestination(source, dest string, overwrite bool) error {
	if err := errors.ValidatePath(dest); err != nil {
		return err
	}
	if source != "" && samePath(source, dest) {
		return errors.New(errors.ErrCodeDestinationConflict,
			"refusing to write to the source file %q", dest)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return nil
	}
	if source != "" {
		if srcInfo, err := os.Stat(source); err == nil && os.SameFile(info, srcInfo) {
			return errors.New(errors.ErrCodeDestinationConflict,
				"%q is the same file as the source %q", dest, source)
		}
	}
	if info.IsDir() {
		return errors.New(errors.ErrCodeDestinationConflict, "%q is a directory", dest)
	}
	if !overwrite {
		return errors.New(errors.ErrCodeDestinationConflict,
			"%q already exists (use --overwrite to replace it)", dest)
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// Save writes a copy of the archive with its JSON member replaced by p.
//
// The container is first written to a temporary file next to dest and then
// renamed into place, so a failed save never leaves partial output behind.
func (a *Archive) Save(dest string, p *project.Project, opts SaveOptions) (Output, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if err := CheckDestination(a.Path, dest, opts.Overwrite); err != nil {
		return Output{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".sb3min-*.tmp")
	if err != nil {
		return Output{}, errors.Wrap(errors.ErrCodeInternal, err, "create temporary file")
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	out, err := a.Repack(tmp, p)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = errors.Wrap(errors.ErrCodeInternal, cerr, "close temporary file")
	}
	if err != nil {
		return Output{}, err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return Output{}, errors.Wrap(errors.ErrCodeInternal, err, "chmod temporary file")
	}

	// Something may have appeared at dest while we were writing.
	if !opts.Overwrite {
		if _, err := os.Lstat(dest); !stderrors.Is(err, fs.ErrNotExist) {
			return Output{}, errors.New(errors.ErrCodeDestinationConflict, "%q already exists", dest)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return Output{}, errors.Wrap(errors.ErrCodeInternal, err, "move output into place")
	}
	committed = true

	out.Path = dest
	opts.Logger.Debug("saved container", "path", dest, "bytes", out.ArchiveBytes)
	return out, nil
}

// Repack writes the archive to w with its JSON member replaced by p.
// Member order and every other member's compressed bytes are preserved.
// The JSON member is stored with Deflate at best compression.
func (a *Archive) Repack(w io.Writer, p *project.Project) (Output, error) {
	data, err := p.Encode()
	if err != nil {
		return Output{}, errors.Wrap(errors.ErrCodeInternal, err, "encode %s", a.Member)
	}

	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, f := range a.zr.File {
		if f.Name != a.Member {
			if err := zw.Copy(f); err != nil {
				return Output{}, errors.Wrap(errors.ErrCodeInternal, err, "copy member %q", f.Name)
			}
			continue
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     a.Member,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			return Output{}, errors.Wrap(errors.ErrCodeInternal, err, "create member %q", a.Member)
		}
		if _, err := fw.Write(data); err != nil {
			return Output{}, errors.Wrap(errors.ErrCodeInternal, err, "write member %q", a.Member)
		}
	}
	if err := zw.Close(); err != nil {
		return Output{}, errors.Wrap(errors.ErrCodeInternal, err, "finish archive")
	}
	return Output{ArchiveBytes: cw.n, JSONBytes: len(data)}, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// DebugPath returns where the debug copy of the JSON member of source is
// written: next to source, named after the member.
func DebugPath(source, member string) string {
	return filepath.Join(filepath.Dir(source), member)
}

// WriteDebugJSON writes p to path as standalone JSON, indented by four
// spaces when pretty is set.
func WriteDebugJSON(path string, p *project.Project, pretty bool) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = p.EncodeIndent()
	} else {
		data, err = p.Encode()
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode debug JSON")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write debug JSON %q", path)
	}
	return nil
}
