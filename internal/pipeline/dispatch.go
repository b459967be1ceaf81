package pipeline

import (
	"context"
	"sync"
)

// CommandID identifies one dispatched work item.
type CommandID uint64

// dispatcher runs a phase's work items across a bounded pool of
// goroutines and funnels completed results back for sequential
// application. Results are commutative with respect to the aggregate
// counters by construction: each item writes only to its own slot.
type dispatcher struct {
	workers int

	mu     sync.Mutex
	active map[CommandID]context.CancelFunc
	nextID CommandID
}

func newDispatcher(workers int) *dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &dispatcher{workers: workers, active: make(map[CommandID]context.CancelFunc)}
}

// submit assigns items fresh command ids and runs them to completion,
// applying every successful result on the calling goroutine. Order of
// application is completion order, not submission order.
func (d *dispatcher) submit(ctx context.Context, items []func(ctx context.Context) (apply func(), ok bool)) {
	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup
	applyCh := make(chan func(), len(items))

	for _, runFn := range items {
		runFn := runFn
		id := d.nextCommandID()

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer d.unregister(id)

			itemCtx, cancel := d.contextFor(id, ctx)
			defer cancel()

			apply, ok := runFn(itemCtx)
			if ok && apply != nil {
				applyCh <- apply
			}
		}()
	}

	go func() {
		wg.Wait()
		close(applyCh)
	}()

	for apply := range applyCh {
		apply()
	}
}

func (d *dispatcher) nextCommandID() CommandID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *dispatcher) contextFor(id CommandID, parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	d.mu.Lock()
	d.active[id] = cancel
	d.mu.Unlock()
	return ctx, cancel
}

func (d *dispatcher) unregister(id CommandID) {
	d.mu.Lock()
	delete(d.active, id)
	d.mu.Unlock()
}

// cancel removes id from the active set and invokes its cancel
// function, if it is still outstanding. The partial result, if any, is
// discarded because its apply closure is never sent on applyCh once
// runFn observes ctx.Done() and returns ok=false.
func (d *dispatcher) cancel(id CommandID) {
	d.mu.Lock()
	cancel, ok := d.active[id]
	delete(d.active, id)
	d.mu.Unlock()
	if ok {
		cancel()
	}
}
