package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"social-tracker/internal/domain"
)

const maxParallelReads = 4

type parsedFile struct {
	path     string
	platform domain.Platform
	posts    []domain.Post
	dropped  int
}

// ImportFolder импортирует все *.csv каталога: сначала facebook, затем instagram,
// внутри платформы в порядке имён. Файлы читаются параллельно, пишутся по одному.
func (s *Service) ImportFolder(ctx context.Context, dir, defaultBrand string) ([]ImportResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("чтение каталога: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	parsed := make([]parsedFile, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			table, err := s.reader.Read(f)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			platform, posts, dropped := s.ParseTable(table, filepath.Base(path))
			parsed[i] = parsedFile{path: path, platform: platform, posts: posts, dropped: dropped}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return platformOrder(parsed[i].platform) < platformOrder(parsed[j].platform)
	})

	results := make([]ImportResult, 0, len(parsed))
	var errs []error
	for _, pf := range parsed {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.importPosts(ctx, filepath.Base(pf.path), pf.platform, pf.posts, pf.dropped, defaultBrand)
		results = append(results, res)
		if err != nil {
			if errors.Is(err, domain.ErrStorageUnavailable) {
				return results, err
			}
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

func platformOrder(p domain.Platform) int {
	for i, known := range domain.Platforms {
		if p == known {
			return i
		}
	}
	return len(domain.Platforms)
}
