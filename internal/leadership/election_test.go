package leadership

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/goleak"
)

func newTestElection(t *testing.T, mr *miniredis.Miniredis, id string) *Election {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewElectionWithClient(client, ElectionConfig{
		InstanceID:      id,
		LeaseDuration:   time.Second,
		RenewalInterval: 10 * time.Millisecond,
	}, zerolog.Nop())
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSingleLeaderAndHandover(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	a := newTestElection(t, mr, "kiosk-a")
	a.Start(ctx)
	waitFor(t, "a to lead", a.IsLeader)

	b := newTestElection(t, mr, "kiosk-b")
	b.Start(ctx)
	defer b.Stop()

	time.Sleep(50 * time.Millisecond)
	if b.IsLeader() {
		t.Fatal("two leaders at once")
	}
	if id, _ := b.Leader(ctx); id != "kiosk-a" {
		t.Fatalf("expected kiosk-a to lead, got %q", id)
	}

	if err := a.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitFor(t, "b to take over", b.IsLeader)
}

func TestLeaseRenewalKeepsLeadership(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newTestElection(t, mr, "kiosk-a")
	a.Start(context.Background())
	defer a.Stop()

	waitFor(t, "a to lead", a.IsLeader)
	select {
	case leader := <-a.LeaderCh():
		if !leader {
			t.Fatal("expected an acquired transition")
		}
	case <-time.After(time.Second):
		t.Fatal("expected a leadership transition")
	}

	time.Sleep(50 * time.Millisecond)
	if ttl := mr.TTL(defaultElectionKey); ttl <= 0 || ttl > time.Second {
		t.Fatalf("expected a renewed lease, ttl %s", ttl)
	}
	if !a.IsLeader() {
		t.Fatal("leader should keep renewing")
	}
}

type fakeLeader struct {
	leader atomic.Bool
	ch     chan bool
}

func (f *fakeLeader) IsLeader() bool        { return f.leader.Load() }
func (f *fakeLeader) LeaderCh() <-chan bool { return f.ch }

func (f *fakeLeader) set(v bool) {
	f.leader.Store(v)
	f.ch <- v
}

func TestRunnerFollowsLeadership(t *testing.T) {
	defer goleak.VerifyNone(t)

	leader := &fakeLeader{ch: make(chan bool)}
	var starts atomic.Int32
	job := func(ctx context.Context) {
		starts.Add(1)
		<-ctx.Done()
	}

	r := NewRunner(leader, "enrichment", job, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	if r.Running() {
		t.Fatal("job should wait for leadership")
	}
	leader.set(true)
	waitFor(t, "job start", r.Running)

	leader.set(false)
	waitFor(t, "job stop", func() bool { return !r.Running() })

	leader.set(true)
	waitFor(t, "job restart", func() bool { return starts.Load() == 2 })

	cancel()
	<-done
	if r.Running() {
		t.Fatal("job should stop with the runner")
	}
}
