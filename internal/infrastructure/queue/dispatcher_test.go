package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/scoutme/scoutme-api/internal/core/ports"
)

type recordingNotifier struct {
	mu       sync.Mutex
	verified []string
	reset    []string
	err      error
}

func (n *recordingNotifier) SendVerificationEmail(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verified = append(n.verified, email+":"+token)
	return n.err
}

func (n *recordingNotifier) SendPasswordResetEmail(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset = append(n.reset, email+":"+token)
	return n.err
}

func TestDispatcher_DeliversAndDrainsOnStop(t *testing.T) {
	n := &recordingNotifier{}
	d := NewDispatcher(2, n, zerolog.Nop())
	d.Start(context.Background())

	for i := 0; i < 10; i++ {
		if !d.Enqueue(ports.MailJob{Kind: ports.MailVerification, To: "alice@example.com", Token: "t"}) {
			t.Fatalf("enqueue #%d rejected", i)
		}
	}
	d.Enqueue(ports.MailJob{Kind: ports.MailPasswordReset, To: "bob@example.com", Token: "r"})
	d.Stop()

	if len(n.verified) != 10 {
		t.Fatalf("expected 10 verification emails, got %d", len(n.verified))
	}
	if len(n.reset) != 1 || n.reset[0] != "bob@example.com:r" {
		t.Fatalf("unexpected reset deliveries: %v", n.reset)
	}
}

func TestDispatcher_EnqueueAfterStop(t *testing.T) {
	d := NewDispatcher(1, &recordingNotifier{}, zerolog.Nop())
	d.Start(context.Background())
	d.Stop()

	if d.Enqueue(ports.MailJob{Kind: ports.MailVerification, To: "a@example.com"}) {
		t.Fatalf("expected enqueue to fail after Stop")
	}
	d.Stop()
}

func TestDispatcher_FailuresAreObservedNotPropagated(t *testing.T) {
	n := &recordingNotifier{err: errors.New("smtp down")}
	d := NewDispatcher(1, n, zerolog.Nop())

	var mu sync.Mutex
	var failures int
	d.OnDelivery(func(kind ports.MailKind, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			failures++
		}
	})
	d.Start(context.Background())

	d.Enqueue(ports.MailJob{Kind: ports.MailVerification, To: "a@example.com", Token: "t"})
	d.Stop()

	if failures != 1 {
		t.Fatalf("expected 1 observed failure, got %d", failures)
	}
}

func TestDispatcher_ShardIsStablePerRecipient(t *testing.T) {
	d := NewDispatcher(8, &recordingNotifier{}, zerolog.Nop())
	first := d.shardIndex("alice@example.com")
	for i := 0; i < 5; i++ {
		if got := d.shardIndex("alice@example.com"); got != first {
			t.Fatalf("shard changed: %d != %d", got, first)
		}
	}
}
