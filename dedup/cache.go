// Package dedup remembers recently seen message ids so a clipboard event is
// inserted into history and relayed at most once.
//
// A Cache is not safe for concurrent use. It is owned by the queue coordinator
// goroutine, which is the only caller.
package dedup

import (
	"container/list"
	"time"
)

const (
	DefaultCapacity = 500
	DefaultWindow   = 5 * time.Minute
)

type entry struct {
	id string
	at time.Time
}

type Cache struct {
	capacity int
	window   time.Duration
	now      func() time.Time
	order    *list.List // front = most recent
	index    map[string]*list.Element
}

type Option func(*Cache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New builds a cache bounded by both capacity and time window.
// Non-positive values fall back to the defaults.
func New(capacity int, window time.Duration, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Cache{
		capacity: capacity,
		window:   window,
		now:      time.Now,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seen reports whether id is resident, inserting it when it is not.
// A hit refreshes neither the position nor the timestamp: the window counts
// from the first sighting.
func (c *Cache) Seen(id string) bool {
	now := c.now()
	c.expire(now)

	if _, ok := c.index[id]; ok {
		return true
	}
	c.index[id] = c.order.PushFront(&entry{id: id, at: now})
	for c.order.Len() > c.capacity {
		c.removeOldest()
	}
	return false
}

func (c *Cache) Len() int {
	return c.order.Len()
}

// Reset drops every entry, used when a queue session ends.
func (c *Cache) Reset() {
	c.order.Init()
	c.index = make(map[string]*list.Element, c.capacity)
}

func (c *Cache) expire(now time.Time) {
	for {
		last := c.order.Back()
		if last == nil || now.Sub(last.Value.(*entry).at) < c.window {
			return
		}
		c.removeOldest()
	}
}

func (c *Cache) removeOldest() {
	last := c.order.Back()
	if last == nil {
		return
	}
	c.order.Remove(last)
	delete(c.index, last.Value.(*entry).id)
}
