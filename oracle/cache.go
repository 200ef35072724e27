package oracle

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dlvgo/hexcore/ground"
	"github.com/dlvgo/hexcore/idstore"
)

// Cache wraps an Oracle with the query→answer cache of spec.md §4.5,
// keyed by (input tuple, output pattern, scope-masked interpretation,
// scope-masked assigned set, scope-masked program mask size). Changed is
// deliberately excluded from the key: an oracle that cares-about-changed is
// by definition sensitive to incremental history, not just current state,
// so its answers are never safely cacheable across calls and Cache always
// calls through for it (see NewCache's caresAboutChanged parameter).
type Cache struct {
	inner Oracle

	caresAboutChanged bool

	mu      sync.Mutex
	entries map[string]Answer
	hits    int
	misses  int
}

// NewCache wraps inner. caresAboutChanged should mirror the external atom's
// ExternalAtomProperties.CaresAboutChanged; when true, Retrieve always calls
// through to inner without consulting or populating the cache.
func NewCache(inner Oracle, caresAboutChanged bool) *Cache {
	return &Cache{inner: inner, caresAboutChanged: caresAboutChanged, entries: make(map[string]Answer)}
}

func maskedKey(interp *ground.Interpretation) string {
	if interp == nil {
		return "-"
	}
	addrs := interp.Addresses()
	var b strings.Builder
	for i, a := range addrs {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", a)
	}
	return b.String()
}

func (q Query) cacheKey() string {
	var in, out strings.Builder
	for i, id := range q.Input {
		if i > 0 {
			in.WriteByte(',')
		}
		in.WriteString(id.String())
	}
	for i, id := range q.OutputPattern {
		if i > 0 {
			out.WriteByte(',')
		}
		out.WriteString(id.String())
	}
	return fmt.Sprintf("%s|%s|%s|%s|%d", in.String(), out.String(),
		maskedKey(q.Interpretation), maskedKey(q.Assigned), q.ProgramMaskSize)
}

// Retrieve answers from cache when possible, else calls through to inner
// and stores the result.
func (c *Cache) Retrieve(ctx context.Context, q Query) (Answer, error) {
	if c.caresAboutChanged {
		return c.inner.Retrieve(ctx, q)
	}

	key := q.cacheKey()
	c.mu.Lock()
	if a, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return a, nil
	}
	c.mu.Unlock()

	a, err := c.inner.Retrieve(ctx, q)
	if err != nil {
		return Answer{}, err
	}

	c.mu.Lock()
	c.entries[key] = a
	c.misses++
	c.mu.Unlock()
	return a, nil
}

func (c *Cache) Predicate() idstore.Id    { return c.inner.Predicate() }
func (c *Cache) InputTypes() []InputType  { return c.inner.InputTypes() }
func (c *Cache) OutputArity() (int, bool) { return c.inner.OutputArity() }

// Stats returns the cumulative hit/miss counts, for diagnostics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

var _ Oracle = (*Cache)(nil)
