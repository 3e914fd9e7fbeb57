package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/tenantadmin/internal/filex"
)

// LocalAdapter stores artifacts as JSON files under a base directory.
type LocalAdapter struct {
	base string
	now  func() time.Time
}

func NewLocalAdapter(basePath string) *LocalAdapter {
	if basePath == "" {
		basePath = "."
	}
	return &LocalAdapter{base: basePath, now: time.Now}
}

func (a *LocalAdapter) Kind() string { return TypeLocal }

// BasePath is the directory artifacts are stored under.
func (a *LocalAdapter) BasePath() string { return a.base }

func (a *LocalAdapter) fullPath(p string) string {
	return filepath.Join(a.base, filepath.FromSlash(strings.TrimPrefix(p, "/")))
}

func (a *LocalAdapter) Save(ctx context.Context, path string, data any, md Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	content, _, err := encodeEnvelope(TypeLocal, data, md, a.now())
	if err != nil {
		return err
	}
	if err := filex.WriteAtomic(a.fullPath(path), content); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func (a *LocalAdapter) Load(ctx context.Context, path string, out any) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(a.fullPath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(path)
		}
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	md, err := decodeEnvelope(content, out)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return md, nil
}

func (a *LocalAdapter) List(ctx context.Context, pattern string, opts ListOptions) ([]Object, error) {
	root := a.fullPath(staticPrefix(pattern))
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", pattern, err)
	}

	var out []Object
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(a.base, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !Match(pattern, rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		obj := Object{Path: rel, Size: info.Size(), ModTime: info.ModTime()}
		if opts.IncludeMetadata {
			md, err := a.Load(ctx, rel, nil)
			if err != nil {
				return err
			}
			obj.Metadata = md
		}
		out = append(out, obj)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", pattern, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (a *LocalAdapter) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(a.fullPath(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

// Delete removes the artifact; deleting a missing artifact is not an error.
func (a *LocalAdapter) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(a.fullPath(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}
