package static

import (
	"container/list"
	"os"
	"sync"
)

// FileCache keeps recently used files open, evicting the least recently
// used one past maxFiles. A file stays open until every handle obtained
// from Get has been closed, even after eviction.
type FileCache struct {
	mu       sync.Mutex
	cache    map[string]*cacheEntry
	lruList  *list.List
	maxFiles int
}

type cacheEntry struct {
	path    string
	file    *os.File
	size    int64
	refs    int
	evicted bool
	element *list.Element
}

// Handle is a reference to a cached open file
type Handle struct {
	fc    *FileCache
	entry *cacheEntry
	once  sync.Once
}

// NewFileCache creates a new file cache
func NewFileCache(maxFiles int) *FileCache {
	if maxFiles <= 0 {
		maxFiles = 1
	}
	return &FileCache{
		cache:    make(map[string]*cacheEntry),
		lruList:  list.New(),
		maxFiles: maxFiles,
	}
}

// Get returns a handle for path, opening the file on a miss
func (fc *FileCache) Get(path string) (*Handle, error) {
	fc.mu.Lock()
	if entry, ok := fc.cache[path]; ok {
		fc.lruList.MoveToFront(entry.element)
		entry.refs++
		fc.mu.Unlock()
		return &Handle{fc: fc, entry: entry}, nil
	}
	fc.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	// Another goroutine may have opened it meanwhile
	if entry, ok := fc.cache[path]; ok {
		file.Close()
		fc.lruList.MoveToFront(entry.element)
		entry.refs++
		return &Handle{fc: fc, entry: entry}, nil
	}

	entry := &cacheEntry{
		path: path,
		file: file,
		size: info.Size(),
		refs: 1,
	}
	entry.element = fc.lruList.PushFront(entry)
	fc.cache[path] = entry

	for fc.lruList.Len() > fc.maxFiles {
		fc.evictLocked(fc.lruList.Back().Value.(*cacheEntry))
	}

	return &Handle{fc: fc, entry: entry}, nil
}

func (fc *FileCache) evictLocked(entry *cacheEntry) {
	delete(fc.cache, entry.path)
	fc.lruList.Remove(entry.element)
	entry.evicted = true
	if entry.refs == 0 {
		entry.file.Close()
	}
}

// Len returns the number of cached files
func (fc *FileCache) Len() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.lruList.Len()
}

// Close evicts every file. Files with open handles are closed when the
// last handle is released.
func (fc *FileCache) Close() {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	for _, entry := range fc.cache {
		fc.evictLocked(entry)
	}
}

// ReadAt implements io.ReaderAt
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	return h.entry.file.ReadAt(p, off)
}

// Size returns the file size observed when it was opened
func (h *Handle) Size() int64 {
	return h.entry.size
}

// Close releases the handle
func (h *Handle) Close() error {
	h.once.Do(func() {
		h.fc.mu.Lock()
		defer h.fc.mu.Unlock()

		h.entry.refs--
		if h.entry.evicted && h.entry.refs == 0 {
			h.entry.file.Close()
		}
	})
	return nil
}
