package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/smazurov/hlsnode/internal/records"
)

type result struct {
	pid int
	err error
}

type op struct {
	fn    func() (int, error)
	reply chan result
}

// worker serializes every operation on one record.
type worker struct {
	id       int64
	ops      chan op
	restarts chan int
	quit     chan struct{}
	done     chan struct{}

	// users counts callers between acquire and release; guarded by Controller.mu.
	users int
}

// acquire returns the worker for id, starting it if needed. The worker is
// pinned until the matching release.
func (c *Controller) acquire(id int64) (*worker, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	w, ok := c.workers[id]
	if !ok {
		w = &worker{
			id:       id,
			ops:      make(chan op),
			restarts: make(chan int, 1),
			quit:     make(chan struct{}),
			done:     make(chan struct{}),
		}
		c.workers[id] = w
		c.wg.Add(1)
		go c.runWorker(w)
	}
	w.users++
	return w, nil
}

// release unpins w. With retire set, a worker nobody else holds and that has
// no queued restart is stopped and dropped, so ids without a record do not
// keep a goroutine.
func (c *Controller) release(w *worker, retire bool) {
	c.mu.Lock()
	w.users--
	drop := retire && w.users == 0 && len(w.restarts) == 0 && c.workers[w.id] == w
	if drop {
		delete(c.workers, w.id)
	}
	c.mu.Unlock()

	if drop {
		c.logger.Debug("Dropped worker for missing record", "record_id", w.id)
		close(w.quit)
	}
}

func (c *Controller) runWorker(w *worker) {
	defer c.wg.Done()
	defer close(w.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-w.quit:
			return
		case o := <-w.ops:
			o.reply <- c.call(o.fn)
		case pid := <-w.restarts:
			c.call(func() (int, error) {
				c.restartByPID(w.id, pid)
				return 0, nil
			})
		}
	}
}

// call runs fn, turning a panic into an error so the worker survives.
func (c *Controller) call(fn func() (int, error)) (r result) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("Supervisor operation panicked", "panic", fmt.Sprint(p))
			r = result{err: fmt.Errorf("supervisor operation panicked: %v", p)}
		}
	}()
	pid, err := fn()
	return result{pid: pid, err: err}
}

// do runs fn on id's worker and waits for its result. When fn reports the
// record missing the worker is retired.
func (c *Controller) do(ctx context.Context, id int64, fn func() (int, error)) (pid int, err error) {
	w, err := c.acquire(id)
	if err != nil {
		return 0, err
	}
	defer func() { c.release(w, errors.Is(err, records.ErrNotFound)) }()

	reply := make(chan result, 1)
	select {
	case w.ops <- op{fn: fn, reply: reply}:
	case <-w.done:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.pid, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// queueRestart puts pid in w's restart slot. A request already waiting there
// is replaced: only the newest pid can still belong to the record.
func (c *Controller) queueRestart(w *worker, pid int) {
	for {
		select {
		case w.restarts <- pid:
			c.logger.Info("Restart requested", "record_id", w.id, "pid", pid)
			return
		default:
		}
		select {
		case old := <-w.restarts:
			if old == pid {
				c.logger.Debug("Restart already pending", "record_id", w.id, "pid", pid)
			} else {
				c.logger.Debug("Superseding pending restart", "record_id", w.id, "old_pid", old, "pid", pid)
			}
		default:
		}
	}
}
