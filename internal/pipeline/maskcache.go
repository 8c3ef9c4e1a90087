package pipeline

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/couchcryptid/seaice-drift/internal/domain"
	"github.com/couchcryptid/seaice-drift/internal/observability"
)

// maskCache memoizes spatial masks so datasets on identical grids share them.
type maskCache struct {
	cache   *lruCache[domain.SpatialWeightMask]
	metrics *observability.Metrics
}

func newMaskCache(maxEntries int, metrics *observability.Metrics) *maskCache {
	return &maskCache{cache: newLRUCache[domain.SpatialWeightMask](maxEntries), metrics: metrics}
}

// mask returns the cached mask for the grid, region, area source and bounds
// mode, building it on a miss. areaSource is "" when area is computed.
func (c *maskCache) mask(g *domain.Grid, r domain.Region, area []float64, areaSource string, mode domain.BoundsMode) (domain.SpatialWeightMask, bool, error) {
	key := fmt.Sprintf("%s|%s|%s|%s", gridFingerprint(g), r.Key(), mode, areaSource)
	if m, ok := c.cache.get(key); ok {
		c.metrics.MaskCache.WithLabelValues("hit").Inc()
		return m, true, nil
	}
	c.metrics.MaskCache.WithLabelValues("miss").Inc()
	m, err := domain.BuildMask(g, r, area, mode)
	if err != nil {
		return m, false, err
	}
	c.cache.put(key, m)
	return m, false, nil
}

// gridFingerprint hashes the shape, coordinates and bounds of a grid.
func gridFingerprint(g *domain.Grid) string {
	h := fnv.New64a()
	var buf [8]byte
	write := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	for _, v := range g.Lat {
		write(v)
	}
	for _, v := range g.Lon {
		write(v)
	}
	for _, b := range g.LatBounds {
		write(b[0])
		write(b[1])
	}
	for _, b := range g.LonBounds {
		write(b[0])
		write(b[1])
	}
	return fmt.Sprintf("%dx%d:%016x", g.NY, g.NX, h.Sum64())
}

// lruCache is a thread-safe LRU cache keyed by string.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
