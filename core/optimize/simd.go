package optimize

import (
	"bytes"

	"golang.org/x/sys/cpu"
)

// Vector capabilities detection
var (
	useAVX2 bool // x86_64 AVX2
	useNEON bool // ARM64 NEON
)

func init() {
	if cpu.ARM64.HasASIMD {
		useNEON = true
	}
	if cpu.X86.HasAVX2 {
		useAVX2 = true
	}
}

// vectorWindow is the smallest window worth handing to the vectorised
// bytes.Index implementation; shorter windows are scanned inline.
const vectorWindow = 64

// IndexWindow returns the lowest index i >= start at which target begins,
// with the whole match lying inside buf[:max]. It returns -1 when there is
// no such index. Bytes at or beyond max are never inspected.
func IndexWindow(buf, target []byte, start, max int) int {
	if max > len(buf) {
		max = len(buf)
	}
	if start < 0 {
		start = 0
	}
	if len(target) == 0 || start >= max || len(target) > max-start {
		return -1
	}

	if (useAVX2 || useNEON) && max-start >= vectorWindow {
		if i := bytes.Index(buf[start:max], target); i >= 0 {
			return start + i
		}
		return -1
	}

	return indexScalar(buf, target, start, max)
}

// indexScalar is the portable single pass search
func indexScalar(buf, target []byte, start, max int) int {
	first := target[0]
	last := max - len(target)
outer:
	for i := start; i <= last; i++ {
		if buf[i] != first {
			continue
		}
		for j := 1; j < len(target); j++ {
			if buf[i+j] != target[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
