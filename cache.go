package sluice

import (
	"io"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// basisCachePages is how many basis pages PatchFile keeps in memory.
const basisCachePages = 32

// cachingReaderAt caches page-aligned reads from an underlying reader.
// Deltas tend to copy from the same basis neighborhoods repeatedly.
type cachingReaderAt struct {
	r        io.ReaderAt
	pageSize int
	cache    *lru.Cache
}

func newCachingReaderAt(r io.ReaderAt, pageSize int, pages int) (*cachingReaderAt, error) {
	cache, err := lru.New(pages)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &cachingReaderAt{
		r:        r,
		pageSize: pageSize,
		cache:    cache,
	}, nil
}

func (c *cachingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	total := 0
	for total < len(p) {
		pos := off + int64(total)
		pageIndex := pos / int64(c.pageSize)
		pageOffset := int(pos % int64(c.pageSize))

		page, err := c.page(pageIndex)
		if err != nil {
			return total, err
		}
		if pageOffset >= len(page) {
			// Past the end of the underlying data.
			return total, io.EOF
		}
		total += copy(p[total:], page[pageOffset:])
		if len(page) < c.pageSize {
			// Short (final) page; if the caller wanted more, it isn't there.
			if total < len(p) {
				return total, io.EOF
			}
		}
	}
	return total, nil
}

// page returns the cached page, loading it on a miss. The final page of
// the underlying data may be short.
func (c *cachingReaderAt) page(index int64) ([]byte, error) {
	if cached, ok := c.cache.Get(index); ok {
		return cached.([]byte), nil
	}

	buf := make([]byte, c.pageSize)
	n, err := c.r.ReadAt(buf, index*int64(c.pageSize))
	if err != nil && err != io.EOF {
		return nil, err
	}
	buf = buf[:n]
	c.cache.Add(index, buf)
	return buf, nil
}
