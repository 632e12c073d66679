// Package window implements a fixed-capacity byte window with explicit read
// and write cursors. It is the input staging area between a data source and
// a transform engine step: filled from the source at the tail, consumed by
// the engine from the head, and compacted (unread bytes slid to the front)
// when the tail runs out of room.
package window

import "io"

// Window holds up to cap(buf) bytes. Invariant: 0 <= read <= write <= cap.
type Window struct {
	buf   []byte
	read  int
	write int
}

// New allocates a window with the given capacity.
func New(capacity int) *Window {
	return &Window{
		buf: make([]byte, capacity),
	}
}

// Cap returns the window's fixed capacity.
func (w *Window) Cap() int {
	return len(w.buf)
}

// Len returns the number of unread bytes.
func (w *Window) Len() int {
	return w.write - w.read
}

// Spare returns the free space at the tail, before compaction.
func (w *Window) Spare() int {
	return len(w.buf) - w.write
}

// Pending returns the unread bytes. The slice aliases the window's storage
// and is invalidated by Fill, Compact and Reset.
func (w *Window) Pending() []byte {
	return w.buf[w.read:w.write]
}

// Consume marks n unread bytes as read. n must not exceed Len.
func (w *Window) Consume(n int) {
	if n < 0 || n > w.Len() {
		panic("window: consume out of range")
	}
	w.read += n
	if w.read == w.write {
		// Nothing unread: reclaim the whole window for free.
		w.read = 0
		w.write = 0
	}
}

// Compact slides the unread region to the front of the window, making all
// non-pending space available at the tail.
func (w *Window) Compact() {
	if w.read == 0 {
		return
	}
	n := copy(w.buf, w.buf[w.read:w.write])
	w.read = 0
	w.write = n
}

// Fill compacts if the tail is exhausted, then performs at most one read
// from source into the tail. It returns the number of bytes read and the
// read error, if any. A (0, nil) return is possible per the io.Reader
// contract and does not mean end of data; only an io.EOF error does.
func (w *Window) Fill(source io.Reader) (int, error) {
	if w.Spare() == 0 {
		w.Compact()
	}
	if w.Spare() == 0 {
		return 0, nil
	}
	n, err := source.Read(w.buf[w.write:])
	w.write += n
	return n, err
}

// Reset empties the window without touching its storage.
func (w *Window) Reset() {
	w.read = 0
	w.write = 0
}
