package pools

import (
	"bufio"
	"io"
	"sync"
	"sync/atomic"
)

// BufferPool recycles the per-connection bufio readers and writers. Readers
// are sized to the request framing window so one fill is one bounded read.
type BufferPool struct {
	readerSize int
	writerSize int

	readers sync.Pool
	writers sync.Pool

	// Statistics
	readerGets atomic.Uint64
	readerNews atomic.Uint64
	writerGets atomic.Uint64
	writerNews atomic.Uint64
}

// NewBufferPool creates a pool for readers of readerSize and writers of writerSize bytes
func NewBufferPool(readerSize, writerSize int) *BufferPool {
	bp := &BufferPool{
		readerSize: readerSize,
		writerSize: writerSize,
	}
	bp.readers.New = func() any {
		bp.readerNews.Add(1)
		return bufio.NewReaderSize(nil, bp.readerSize)
	}
	bp.writers.New = func() any {
		bp.writerNews.Add(1)
		return bufio.NewWriterSize(nil, bp.writerSize)
	}
	return bp
}

// AcquireReader returns a reader reading from r
func (bp *BufferPool) AcquireReader(r io.Reader) *bufio.Reader {
	bp.readerGets.Add(1)
	br := bp.readers.Get().(*bufio.Reader)
	br.Reset(r)
	return br
}

// ReleaseReader returns br to the pool. br must not be used afterwards.
func (bp *BufferPool) ReleaseReader(br *bufio.Reader) {
	if br == nil {
		return
	}
	br.Reset(nil)
	bp.readers.Put(br)
}

// AcquireWriter returns a writer writing to w
func (bp *BufferPool) AcquireWriter(w io.Writer) *bufio.Writer {
	bp.writerGets.Add(1)
	bw := bp.writers.Get().(*bufio.Writer)
	bw.Reset(w)
	return bw
}

// ReleaseWriter returns bw to the pool. Unflushed bytes are dropped.
func (bp *BufferPool) ReleaseWriter(bw *bufio.Writer) {
	if bw == nil {
		return
	}
	bw.Reset(nil)
	bp.writers.Put(bw)
}

// Stats returns buffer pool statistics
func (bp *BufferPool) Stats() BufferStats {
	gets := bp.readerGets.Load() + bp.writerGets.Load()
	news := bp.readerNews.Load() + bp.writerNews.Load()
	hitRate := 0.0
	if gets > 0 && news <= gets {
		hitRate = float64(gets-news) / float64(gets)
	}
	return BufferStats{
		ReaderGets: bp.readerGets.Load(),
		WriterGets: bp.writerGets.Load(),
		Allocated:  news,
		HitRate:    hitRate,
	}
}

// BufferStats contains buffer pool statistics
type BufferStats struct {
	ReaderGets uint64
	WriterGets uint64
	Allocated  uint64
	HitRate    float64
}
