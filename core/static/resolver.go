package static

import (
	"io"
	"path"
	"path/filepath"
)

// Resource is resolved static content
type Resource interface {
	io.ReaderAt
	Size() int64
	ContentType() string
	Close() error
}

// Resolver maps a request path to content
type Resolver interface {
	Resolve(urlPath string) (Resource, error)
}

// Dir resolves paths against a directory on disk
type Dir struct {
	root  string
	cache *FileCache
}

// DefaultCacheSize is the number of open files a Dir keeps around
const DefaultCacheSize = 64

// NewDir creates a resolver rooted at root
func NewDir(root string, cacheSize int) *Dir {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &Dir{
		root:  root,
		cache: NewFileCache(cacheSize),
	}
}

type fileResource struct {
	*Handle
	contentType string
}

func (r fileResource) ContentType() string {
	return r.contentType
}

// Resolve opens the file for urlPath. The path is cleaned first, so it
// cannot escape the root.
func (d *Dir) Resolve(urlPath string) (Resource, error) {
	clean := path.Clean("/" + urlPath)
	name := filepath.Join(d.root, filepath.FromSlash(clean))

	h, err := d.cache.Get(name)
	if err != nil {
		return nil, err
	}
	return fileResource{Handle: h, contentType: ContentType(name)}, nil
}

// Close releases cached files
func (d *Dir) Close() error {
	d.cache.Close()
	return nil
}
