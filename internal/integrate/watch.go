package integrate

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Event is one progress update for a run.
type Event struct {
	RunID     string    `json:"runId"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// closedRunCap bounds how many finished runs keep their event history
// around for late subscribers.
const closedRunCap = 256

// Watcher fans progress events out to subscribers per run. Live runs sit in
// a map; finished runs move into a bounded LRU so history stays available to
// late subscribers without growing forever. Subscribing to a finished,
// evicted or unknown run yields an immediately closed channel.
type Watcher struct {
	mu     sync.Mutex
	runs   map[string]*runTopic
	closed *lru.Cache[string, *runTopic]
}

type runTopic struct {
	history []Event
	subs    []chan Event
}

func NewWatcher() *Watcher {
	// lru.New only fails for non-positive sizes.
	closed, _ := lru.New[string, *runTopic](closedRunCap)
	return &Watcher{runs: make(map[string]*runTopic), closed: closed}
}

func (w *Watcher) open(runID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runs[runID] = &runTopic{}
}

// Publish appends one event to the run's history and delivers it to every
// live subscriber. Slow subscribers are skipped rather than blocked on.
// Events for finished or unknown runs are dropped.
func (w *Watcher) Publish(ev Event) {
	ev.Timestamp = time.Now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()
	topic, ok := w.runs[ev.RunID]
	if !ok {
		return
	}
	topic.history = append(topic.history, ev)
	for _, ch := range topic.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (w *Watcher) close(runID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	topic, ok := w.runs[runID]
	if !ok {
		return
	}
	for _, ch := range topic.subs {
		close(ch)
	}
	topic.subs = nil
	delete(w.runs, runID)
	w.closed.Add(runID, topic)
}

// Subscribe returns the run's history so far plus a channel of future
// events. The cancel function must be called when the subscriber goes away.
func (w *Watcher) Subscribe(runID string) (history []Event, ch <-chan Event, cancel func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	topic, ok := w.runs[runID]
	if !ok {
		done := make(chan Event)
		close(done)
		var hist []Event
		if old, found := w.closed.Get(runID); found {
			hist = append(hist, old.history...)
		}
		return hist, done, func() {}
	}

	sub := make(chan Event, 32)
	topic.subs = append(topic.subs, sub)
	history = append(history, topic.history...)

	cancel = func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		for i, ch := range topic.subs {
			if ch == sub {
				topic.subs = append(topic.subs[:i], topic.subs[i+1:]...)
				close(sub)
				return
			}
		}
	}
	return history, sub, cancel
}
