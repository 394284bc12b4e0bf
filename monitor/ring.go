package monitor

import "time"

// eventRing is a fixed-capacity ring buffer of events. Appending beyond the
// capacity evicts the oldest entry. Not safe for concurrent use; the Monitor
// serializes access.
type eventRing struct {
	buf   []Event
	head  int // index of the oldest entry
	count int
}

func newEventRing(capacity int) *eventRing {
	return &eventRing{buf: make([]Event, capacity)}
}

func (r *eventRing) append(e Event) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	// Full: overwrite the oldest slot and advance the head.
	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
}

func (r *eventRing) len() int {
	return r.count
}

// at returns the i-th oldest event. i must be in [0, len).
func (r *eventRing) at(i int) Event {
	return r.buf[(r.head+i)%len(r.buf)]
}

// newestFirst returns up to limit events, newest first, that match the
// filter. A nil filter matches everything.
func (r *eventRing) newestFirst(limit int, match func(Event) bool) []Event {
	if limit <= 0 || limit > r.count {
		limit = r.count
	}
	out := make([]Event, 0, limit)
	for i := r.count - 1; i >= 0 && len(out) < limit; i-- {
		e := r.at(i)
		if match == nil || match(e) {
			out = append(out, e)
		}
	}
	return out
}

// countSince counts events at or after cutoff that match the predicate.
// Events are appended in time order, so the scan stops at the first entry
// older than the cutoff.
func (r *eventRing) countSince(cutoff time.Time, match func(Event) bool) int {
	n := 0
	for i := r.count - 1; i >= 0; i-- {
		e := r.at(i)
		if e.Timestamp.Before(cutoff) {
			break
		}
		if match(e) {
			n++
		}
	}
	return n
}
