// Package sb3 reads and writes project containers: zip archives holding one
// JSON document (project.json or sprite.json) plus costume and sound assets.
//
// Only the JSON member is ever decoded or rewritten. Every other member is
// copied into the output archive byte for byte, without recompression.
package sb3

import (
	"archive/zip"
	"bytes"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sb3min/pkg/errors"
	"github.com/matzehuels/sb3min/pkg/project"
)

// JSON member names.
const (
	ProjectMember = "project.json"
	SpriteMember  = "sprite.json"
)

// OpenOptions configures [Open] and [Read].
type OpenOptions struct {
	// Member forces the JSON member name instead of choosing it from the
	// file extension.
	Member string

	Logger *log.Logger
}

// Archive is an opened container.
type Archive struct {
	// Path is the file the archive was read from, or the name given to
	// [Read] for in-memory archives.
	Path string

	// Member is the name of the JSON member.
	Member string

	// Size is the size of the container in bytes.
	Size int64

	// JSON is the raw JSON member as stored in the container.
	JSON []byte

	// Project is the decoded JSON member.
	Project *project.Project

	zr *zip.Reader
}

// Open reads the container at path and decodes its JSON member.
func Open(path string, opts OpenOptions) (*Archive, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "file %q does not exist", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidContainer, err, "read %q", path)
	}
	return Read(bytes.NewReader(data), int64(len(data)), path, opts)
}

// Read decodes a container held in r. The name is used to pick the JSON
// member from its extension and in messages.
func Read(r io.ReaderAt, size int64, name string, opts OpenOptions) (*Archive, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	zr, err := zip.NewReader(r, size)
	if stderrors.Is(err, zip.ErrInsecurePath) && zr != nil {
		opts.Logger.Warn("archive contains insecure member names", "file", name)
	} else if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidContainer, err, "%q is not a valid zip file", name)
	}

	member := opts.Member
	if member == "" {
		member = chooseMember(name, zr, opts.Logger)
	} else if err := errors.ValidateMemberName(member); err != nil {
		return nil, err
	}

	f := findMember(zr, member)
	if f == nil {
		return nil, errors.New(errors.ErrCodeMissingMember, "failed to find %q in %q", member, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidContainer, err, "open %s/%s", name, member)
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidContainer, err, "read %s/%s", name, member)
	}

	p, err := project.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidJSON, err, "%s/%s is not a valid project document", name, member)
	}

	return &Archive{
		Path:    name,
		Member:  member,
		Size:    size,
		JSON:    raw,
		Project: p,
		zr:      zr,
	}, nil
}

// chooseMember picks the JSON member from the file extension. A .sb3 whose
// only document is sprite.json, or a .sprite3 whose only document is
// project.json, is accepted with a warning.
func chooseMember(name string, zr *zip.Reader, logger *log.Logger) string {
	hasProject := findMember(zr, ProjectMember) != nil
	hasSprite := findMember(zr, SpriteMember) != nil

	switch strings.ToLower(filepath.Ext(name)) {
	case ".sb3":
		if !hasProject && hasSprite {
			logger.Warn("file has a .sb3 extension but appears to be a sprite", "file", name)
			return SpriteMember
		}
		return ProjectMember
	case ".sprite3":
		if !hasSprite && hasProject {
			logger.Warn("file has a .sprite3 extension but appears to be a project", "file", name)
			return ProjectMember
		}
		return SpriteMember
	default:
		if !hasProject && hasSprite {
			return SpriteMember
		}
		return ProjectMember
	}
}

func findMember(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Members returns the names of all members in archive order.
func (a *Archive) Members() []string {
	names := make([]string, len(a.zr.File))
	for i, f := range a.zr.File {
		names[i] = f.Name
	}
	return names
}
