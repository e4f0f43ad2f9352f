package settings

// Event tells listeners which part of the settings changed.
type Event string

const (
	SceneryPathsChanged  Event = "scenery-paths-changed"
	AircraftPathsChanged Event = "aircraft-paths-changed"
	DownloadDirChanged   Event = "download-dir-changed"
	DataDirChanged       Event = "data-dir-changed"
	CatalogsChanged      Event = "catalogs-changed"
)

// String returns the string representation of Event.
func (e Event) String() string {
	return string(e)
}

// Listener receives events. It may call back into the controller.
type Listener func(Event)

// Subscribe registers l and returns a func that removes it.
func (c *Controller) Subscribe(l Listener) (cancel func()) {
	c.listenMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = l
	c.order = append(c.order, id)
	c.listenMu.Unlock()

	return func() {
		c.listenMu.Lock()
		defer c.listenMu.Unlock()
		delete(c.listeners, id)
		for i, v := range c.order {
			if v == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

// enqueue records ev in acceptance order. Callers hold c.mu so the queue
// order matches the order intents were applied.
func (c *Controller) enqueue(ev Event) {
	c.queueMu.Lock()
	c.queue = append(c.queue, ev)
	c.queueMu.Unlock()
}

// dispatch delivers queued events. Only one goroutine delivers at a time; an
// event queued while another goroutine is delivering (including from inside
// a listener) is picked up by that goroutine's loop.
func (c *Controller) dispatch() {
	for {
		if !c.emitMu.TryLock() {
			return
		}
		for {
			ev, ok := c.pop()
			if !ok {
				break
			}
			c.deliver(ev)
		}
		c.emitMu.Unlock()

		c.queueMu.Lock()
		empty := len(c.queue) == 0
		c.queueMu.Unlock()
		if empty {
			return
		}
	}
}

func (c *Controller) pop() (Event, bool) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if len(c.queue) == 0 {
		return "", false
	}
	ev := c.queue[0]
	c.queue = c.queue[1:]
	return ev, true
}

func (c *Controller) deliver(ev Event) {
	c.listenMu.Lock()
	ls := make([]Listener, 0, len(c.order))
	for _, id := range c.order {
		ls = append(ls, c.listeners[id])
	}
	c.listenMu.Unlock()

	for _, l := range ls {
		l(ev)
	}
}
