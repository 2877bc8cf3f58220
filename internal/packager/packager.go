// Package packager assembles a publishable issue package: a dated directory
// holding the draft, its cover image and metadata, compressed into one archive.
package packager

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/yangwenmai/letterpress/internal/model"
)

// Archive layout, relative to the dated directory.
const (
	IssueFile    = "Issue.md"
	CoverFile    = "images/cover.png"
	MetadataFile = "metadata.json"
)

const coverEmbed = "![Cover](images/cover.png)\n\n"

// Input is one packaging request.
type Input struct {
	DraftPath  string
	CoverPath  string
	Descriptor model.PackageDescriptor
}

// Packager writes packages under the root of its filesystem.
type Packager struct {
	fs  billy.Filesystem
	now func() time.Time
}

// Option configures a Packager.
type Option func(*Packager)

// WithClock overrides the clock that names the dated directory.
func WithClock(now func() time.Time) Option {
	return func(p *Packager) { p.now = now }
}

// New creates a Packager over fs.
func New(fs billy.Filesystem, opts ...Option) *Packager {
	p := &Packager{fs: fs, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewOS creates a Packager rooted at dir on the local disk.
func NewOS(dir string, opts ...Option) *Packager {
	return New(osfs.New(dir), opts...)
}

// Build validates in, stages the dated directory and writes <date>.zip next
// to it. It returns the archive path. Input files must exist and the
// descriptor must be valid before anything is written; once staging starts,
// any failure removes both the directory and the archive.
func (p *Packager) Build(ctx context.Context, in Input) (string, error) {
	if err := requireFile(in.DraftPath, "draft"); err != nil {
		return "", err
	}
	if err := requireFile(in.CoverPath, "cover image"); err != nil {
		return "", err
	}
	if err := in.Descriptor.Validate(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	date := p.now().Format("2006-01-02")
	archive := date + ".zip"
	if err := p.stage(date, in); err != nil {
		p.cleanup(date, archive)
		return "", model.Wrap(model.KindPackaging, "package", err)
	}
	if err := p.compress(date, archive); err != nil {
		p.cleanup(date, archive)
		return "", model.Wrap(model.KindPackaging, "package", err)
	}
	return filepath.Join(p.fs.Root(), archive), nil
}

func requireFile(path, what string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.E(model.KindNotFound, "package", "%s not found at %s", what, path)
		}
		return model.Wrap(model.KindNotFound, "package", err)
	}
	if info.IsDir() {
		return model.E(model.KindNotFound, "package", "%s at %s is a directory", what, path)
	}
	return nil
}

func (p *Packager) stage(date string, in Input) error {
	if err := util.RemoveAll(p.fs, date); err != nil {
		return fmt.Errorf("clear staging directory: %w", err)
	}
	if err := p.fs.MkdirAll(p.fs.Join(date, "images"), 0o755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}

	draft, err := os.ReadFile(in.DraftPath)
	if err != nil {
		return fmt.Errorf("read draft: %w", err)
	}
	issue := append([]byte(coverEmbed), draft...)
	if err := util.WriteFile(p.fs, p.fs.Join(date, IssueFile), issue, 0o644); err != nil {
		return fmt.Errorf("write issue: %w", err)
	}

	cover, err := coverPNG(in.CoverPath)
	if err != nil {
		return err
	}
	if err := util.WriteFile(p.fs, p.fs.Join(date, CoverFile), cover, 0o644); err != nil {
		return fmt.Errorf("write cover: %w", err)
	}

	meta, err := marshalMetadata(in.Descriptor)
	if err != nil {
		return err
	}
	if err := util.WriteFile(p.fs, p.fs.Join(date, MetadataFile), meta, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// coverPNG returns PNG bytes for the cover. PNGs are copied verbatim and
// other decodable formats are re-encoded. Data that does not decode is
// copied as is.
func coverPNG(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cover: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return raw, nil
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		slog.Warn("cover is not a decodable image, copying verbatim", "path", path, "error", err)
		return raw, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode cover from %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// marshalMetadata writes 2-space indented JSON without HTML escaping.
func marshalMetadata(d model.PackageDescriptor) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (p *Packager) compress(date, archive string) (err error) {
	f, err := p.fs.Create(archive)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
	}()

	zw := zip.NewWriter(f)
	walkErr := util.Walk(p.fs, date, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		return p.addFile(zw, path)
	})
	if walkErr != nil {
		zw.Close()
		return walkErr
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

func (p *Packager) addFile(zw *zip.Writer, path string) error {
	src, err := p.fs.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     filepath.ToSlash(path),
		Method:   zip.Deflate,
		Modified: p.now(),
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

func (p *Packager) cleanup(date, archive string) {
	if err := util.RemoveAll(p.fs, date); err != nil {
		slog.Error("remove staging directory", "dir", date, "error", err)
	}
	if err := p.fs.Remove(archive); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("remove partial archive", "archive", archive, "error", err)
	}
}
