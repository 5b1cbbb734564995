package subexec

import (
	"bytes"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// collector drains every captured pipe concurrently with the child. Reads start
// right after spawn, so a child writing more than the pipe capacity never stalls.
type collector struct {
	group errgroup.Group
	bufs  []*bytes.Buffer
	fail  chan struct{}
	once  sync.Once
	done  chan struct{}
	err   error
}

func collect(pipes []*pipe) *collector {
	c := &collector{
		fail: make(chan struct{}),
		done: make(chan struct{}),
	}
	for _, p := range pipes {
		buf := new(bytes.Buffer)
		c.bufs = append(c.bufs, buf)
		c.group.Go(func() error {
			err := drain(p.name, p.r, buf)
			if err != nil {
				c.once.Do(func() { close(c.fail) })
			}
			return err
		})
	}
	go func() {
		c.err = c.group.Wait()
		close(c.done)
	}()
	return c
}

// drain reads r until end-of-stream. The pipe reaches end-of-stream once every
// process holding its write end has exited.
func drain(name string, r io.ReadCloser, buf *bytes.Buffer) error {
	defer r.Close()
	if _, err := buf.ReadFrom(r); err != nil {
		return &StreamError{Stream: name, Err: err}
	}
	return nil
}

// failed is closed as soon as any drain fails.
func (c *collector) failed() <-chan struct{} { return c.fail }

// drained is closed once every drain has returned.
func (c *collector) drained() <-chan struct{} { return c.done }

// wait joins every drain and returns the first failure.
func (c *collector) wait() error {
	<-c.done
	return c.err
}

// output concatenates the drained buffers. Only valid after wait.
func (c *collector) output() string {
	if len(c.bufs) == 1 {
		return c.bufs[0].String()
	}
	var sb bytes.Buffer
	for _, b := range c.bufs {
		sb.Write(b.Bytes())
	}
	return sb.String()
}
