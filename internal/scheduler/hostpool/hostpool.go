package hostpool

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// interval is an inclusive range of host ids.
type interval struct {
	lo int
	hi int
}

func (iv interval) size() int {
	return iv.hi - iv.lo + 1
}

// Allocation is a disjoint set of host ids held by a running job,
// stored as sorted non-adjacent inclusive ranges.
type Allocation struct {
	intervals []interval
}

// Size returns the number of hosts in the allocation.
func (a Allocation) Size() int {
	n := 0
	for _, iv := range a.intervals {
		n += iv.size()
	}
	return n
}

// Hosts returns the host ids in ascending order.
func (a Allocation) Hosts() []int {
	hosts := make([]int, 0, a.Size())
	for _, iv := range a.intervals {
		for id := iv.lo; id <= iv.hi; id++ {
			hosts = append(hosts, id)
		}
	}
	return hosts
}

// String renders the allocation in the compact ascending form accepted by the
// simulator: single ids and hyphenated ranges joined by commas, e.g. "0-2,5".
func (a Allocation) String() string {
	var sb strings.Builder
	for i, iv := range a.intervals {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(iv.lo))
		if iv.hi > iv.lo {
			sb.WriteByte('-')
			sb.WriteString(strconv.Itoa(iv.hi))
		}
	}
	return sb.String()
}

// Pool tracks the free hosts of the platform. Host ids are integers in [0, size).
type Pool struct {
	size int
	free []interval
}

// New returns a pool with all hosts of the platform free.
func New(size int) *Pool {
	pool := &Pool{size: size}
	if size > 0 {
		pool.free = []interval{{lo: 0, hi: size - 1}}
	}
	return pool
}

// Size returns the platform host count.
func (p *Pool) Size() int {
	return p.size
}

// FreeCount returns the number of idle hosts.
func (p *Pool) FreeCount() int {
	n := 0
	for _, iv := range p.free {
		n += iv.size()
	}
	return n
}

// BusyCount returns the number of hosts currently held by running jobs.
func (p *Pool) BusyCount() int {
	return p.size - p.FreeCount()
}

// TryAllocate removes width hosts from the free set and returns them, or false if
// fewer than width hosts are free. The choice is deterministic: the first free run
// of at least width contiguous ids if one exists, otherwise lowest ids first across
// runs.
func (p *Pool) TryAllocate(width int) (Allocation, bool) {
	if width <= 0 || p.FreeCount() < width {
		return Allocation{}, false
	}

	// Contiguous run first.
	for i, iv := range p.free {
		if iv.size() >= width {
			alloc := Allocation{intervals: []interval{{lo: iv.lo, hi: iv.lo + width - 1}}}
			if iv.size() == width {
				p.free = append(p.free[:i], p.free[i+1:]...)
			} else {
				p.free[i].lo += width
			}
			return alloc, true
		}
	}

	// Lowest ids first across runs.
	var taken []interval
	remaining := width
	for remaining > 0 {
		iv := p.free[0]
		if iv.size() <= remaining {
			taken = append(taken, iv)
			remaining -= iv.size()
			p.free = p.free[1:]
		} else {
			taken = append(taken, interval{lo: iv.lo, hi: iv.lo + remaining - 1})
			p.free[0].lo += remaining
			remaining = 0
		}
	}
	return Allocation{intervals: taken}, true
}

// Release returns an allocation's hosts to the free set. Releasing a host that is
// already free or outside the platform is a programming error and is reported.
func (p *Pool) Release(alloc Allocation) error {
	for _, iv := range alloc.intervals {
		if iv.lo < 0 || iv.hi >= p.size {
			return errors.Errorf("release of hosts %d-%d outside platform of size %d", iv.lo, iv.hi, p.size)
		}
		if p.overlapsFree(iv) {
			return errors.Errorf("double release of hosts %d-%d", iv.lo, iv.hi)
		}
	}
	for _, iv := range alloc.intervals {
		p.insertFree(iv)
	}
	return nil
}

func (p *Pool) overlapsFree(iv interval) bool {
	for _, free := range p.free {
		if iv.lo <= free.hi && free.lo <= iv.hi {
			return true
		}
	}
	return false
}

// insertFree adds iv to the free set, keeping it sorted and coalesced.
func (p *Pool) insertFree(iv interval) {
	pos := len(p.free)
	for i, free := range p.free {
		if iv.lo < free.lo {
			pos = i
			break
		}
	}
	p.free = append(p.free, interval{})
	copy(p.free[pos+1:], p.free[pos:])
	p.free[pos] = iv

	// Coalesce adjacent runs.
	merged := p.free[:0]
	for _, free := range p.free {
		if n := len(merged); n > 0 && merged[n-1].hi+1 >= free.lo {
			if free.hi > merged[n-1].hi {
				merged[n-1].hi = free.hi
			}
		} else {
			merged = append(merged, free)
		}
	}
	p.free = merged
}
