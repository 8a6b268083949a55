package eviction

import (
	"sync"

	"github.com/sirupsen/logrus"

	"regioncache/errs"
)

// Region is the subset of LocalRegion the controller needs: evict its own
// LRU map by roughly the given fraction (spec §4.8).
type Region interface {
	Evict(overshootPct float64) error
}

// Controller is the EvictionController (spec §4.8): a process-wide,
// heap-usage-driven background evictor across every registered region.
type Controller struct {
	maxHeapSize int64 // bytes

	mu       sync.Mutex
	regions  map[string]Region
	heapSize int64

	cond    *sync.Cond
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	deltaFactor float64
}

// bytesPerMiB converts the MiB-denominated maxHeapSize configuration knob
// into bytes (spec §4.8 "maxHeapSize bytes (converted from MiB
// configuration)").
const bytesPerMiB = 1 << 20

// NewController constructs a controller for a maxHeapSize expressed in
// MiB. deltaFactor is the small constant added to the raw overshoot
// fraction (spec §4.8's overshoot_pct formula) to evict slightly more than
// the measured overshoot and avoid immediately re-triggering.
func NewController(maxHeapMiB int64, deltaFactor float64) *Controller {
	c := &Controller{
		maxHeapSize: maxHeapMiB * bytesPerMiB,
		regions:     make(map[string]Region),
		deltaFactor: deltaFactor,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Register adds region under name to the eviction set, acquiring the
// shared mutex over the region-name set (spec §4.8).
func (c *Controller) Register(name string, r Region) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regions[name] = r
}

// Deregister removes name from the eviction set.
func (c *Controller) Deregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.regions, name)
}

// IncrementHeapSize atomically updates the heap counter and wakes the
// background loop (spec §4.8's incrementHeapSize).
func (c *Controller) IncrementHeapSize(delta int64) {
	c.mu.Lock()
	c.heapSize += delta
	c.mu.Unlock()
	c.cond.Broadcast()
}

func (c *Controller) HeapSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heapSize
}

// Start launches the background loop. Double-start is a state error (spec
// §9 error taxonomy).
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errs.New(errs.KindState, "eviction: controller already started")
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	go c.loop()
	return nil
}

// Stop signals the loop to exit and waits for it to finish. Double-stop is
// a state error.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return errs.New(errs.KindState, "eviction: controller not running")
	}
	c.running = false
	c.mu.Unlock()

	close(c.stopCh)
	c.cond.Broadcast()
	<-c.doneCh
	return nil
}

// loop is the controller's single background thread: wait on the
// condition variable until either stop() or heapSize > maxHeapSize, then
// evict a snapshot of registered regions (spec §4.8).
func (c *Controller) loop() {
	defer close(c.doneCh)

	for {
		c.mu.Lock()
		for c.running && c.heapSize <= c.maxHeapSize {
			c.cond.Wait()
		}
		stopping := !c.running
		heapSize, maxHeapSize := c.heapSize, c.maxHeapSize
		c.mu.Unlock()

		if stopping {
			return
		}

		overshootPct := float64(heapSize-maxHeapSize)/float64(maxHeapSize) + c.deltaFactor
		c.evictSnapshot(overshootPct)
	}
}

// evictSnapshot copies the region set out from under the set's lock before
// evicting, so a slow region's eviction does not block registration /
// deregistration of others (spec §4.8: "iterates over a snapshot copy to
// avoid holding the set lock across potentially slow eviction work").
func (c *Controller) evictSnapshot(overshootPct float64) {
	c.mu.Lock()
	snapshot := make(map[string]Region, len(c.regions))
	for name, r := range c.regions {
		snapshot[name] = r
	}
	c.mu.Unlock()

	for name, r := range snapshot {
		if err := r.Evict(overshootPct); err != nil {
			logger.WithFields(logrus.Fields{"region": name, "error": err}).Error("eviction failed")
		}
	}
}
