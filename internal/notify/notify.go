// Package notify is the in-process pub/sub hub for article processing
// events. Subscribers get buffered channels; a slow subscriber drops events
// instead of blocking the pipeline.
package notify

import "sync"

// Event kinds published by the processing pipeline.
const (
	KindProcessingStarted = "processing_started"
	KindChunkReady        = "chunk_ready"
	KindChunkFailed       = "chunk_failed"
	KindArticleComplete   = "article_complete"
	KindArticleFailed     = "article_failed"
	KindWorkerStatus      = "worker_status"
)

// Event is one pipeline notification. Data is a JSON payload ready for the
// SSE wire.
type Event struct {
	Kind       string
	ArticleURL string
	Data       string
}

// Firehose subscribes to events for every article.
const Firehose = ""

const subscriberBuffer = 64

// Broker fans events out to subscribers keyed by article URL.
type Broker struct {
	mu   sync.RWMutex
	subs map[string][]chan Event
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string][]chan Event)}
}

// Subscribe returns a buffered channel receiving events for articleURL, or
// for all articles when articleURL is Firehose. The caller must Unsubscribe
// when done.
func (b *Broker) Subscribe(articleURL string) chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[articleURL] = append(b.subs[articleURL], ch)
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel previously returned by Subscribe and closes
// it.
func (b *Broker) Unsubscribe(articleURL string, ch chan Event) {
	b.mu.Lock()
	chans := b.subs[articleURL]
	for i, c := range chans {
		if c == ch {
			b.subs[articleURL] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(b.subs[articleURL]) == 0 {
		delete(b.subs, articleURL)
	}
	b.mu.Unlock()
	close(ch)
}

// Publish delivers ev to the article's subscribers and the firehose without
// blocking. Events to full channels are dropped.
func (b *Broker) Publish(ev Event) {
	// Sends stay under the read lock so Unsubscribe cannot close a channel
	// mid-send. Sends never block, so the lock is held briefly.
	b.mu.RLock()
	defer b.mu.RUnlock()

	deliver := func(chans []chan Event) {
		for _, ch := range chans {
			select {
			case ch <- ev:
			default:
			}
		}
	}
	deliver(b.subs[ev.ArticleURL])
	if ev.ArticleURL != Firehose {
		deliver(b.subs[Firehose])
	}
}

// SubscriberCount reports the number of active subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, chans := range b.subs {
		n += len(chans)
	}
	return n
}
