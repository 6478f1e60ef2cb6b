package notify

import (
	"sync"
	"testing"
)

func TestSubscribeReceivesOwnArticle(t *testing.T) {
	t.Parallel()
	b := NewBroker()
	ch := b.Subscribe("https://example.com/a")
	defer b.Unsubscribe("https://example.com/a", ch)

	b.Publish(Event{Kind: KindChunkReady, ArticleURL: "https://example.com/a", Data: `{"index":0}`})
	b.Publish(Event{Kind: KindChunkReady, ArticleURL: "https://example.com/b", Data: `{"index":0}`})

	select {
	case ev := <-ch:
		if ev.ArticleURL != "https://example.com/a" {
			t.Errorf("got event for %q", ev.ArticleURL)
		}
	default:
		t.Fatal("expected an event")
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected second event: %+v", ev)
	default:
	}
}

func TestFirehoseReceivesAll(t *testing.T) {
	t.Parallel()
	b := NewBroker()
	ch := b.Subscribe(Firehose)
	defer b.Unsubscribe(Firehose, ch)

	b.Publish(Event{Kind: KindProcessingStarted, ArticleURL: "https://example.com/a"})
	b.Publish(Event{Kind: KindArticleComplete, ArticleURL: "https://example.com/b"})
	b.Publish(Event{Kind: KindWorkerStatus})

	if got := len(ch); got != 3 {
		t.Errorf("firehose received %d events, want 3", got)
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()
	b := NewBroker()
	ch := b.Subscribe("u")
	defer b.Unsubscribe("u", ch)

	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(Event{Kind: KindChunkReady, ArticleURL: "u"})
	}
	if got := len(ch); got != subscriberBuffer {
		t.Errorf("buffered %d events, want %d", got, subscriberBuffer)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	b := NewBroker()
	ch := b.Subscribe("u")
	b.Unsubscribe("u", ch)

	if _, open := <-ch; open {
		t.Error("channel still open after Unsubscribe")
	}
	if b.SubscriberCount() != 0 {
		t.Errorf("subscriber count = %d", b.SubscriberCount())
	}

	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Kind: KindChunkReady, ArticleURL: "u"})
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	t.Parallel()
	b := NewBroker()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		ch := b.Subscribe("u")
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Publish(Event{Kind: KindChunkReady, ArticleURL: "u"})
			}
		}()
		go func() {
			defer wg.Done()
			b.Unsubscribe("u", ch)
		}()
	}
	wg.Wait()
}
