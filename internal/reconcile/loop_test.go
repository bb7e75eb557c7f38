package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// blockingCycle counts runs and parks each run until released.
type blockingCycle struct {
	runs    atomic.Int32
	entered chan struct{}
	release chan struct{}
	err     error
}

func newBlockingCycle() *blockingCycle {
	return &blockingCycle{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (c *blockingCycle) RunCycle(ctx context.Context) error {
	c.runs.Add(1)
	c.entered <- struct{}{}
	<-c.release
	return c.err
}

var _ = Describe("Guard", func() {
	It("admits a single holder", func() {
		var g Guard
		release, ok := g.TryAcquire()
		Expect(ok).To(BeTrue())
		_, again := g.TryAcquire()
		Expect(again).To(BeFalse())

		release()
		Expect(g.Held()).To(BeFalse())
		_, ok = g.TryAcquire()
		Expect(ok).To(BeTrue())
	})

	It("ignores a stale release after reset", func() {
		var g Guard
		stale, _ := g.TryAcquire()
		g.Reset()

		fresh, ok := g.TryAcquire()
		Expect(ok).To(BeTrue())
		stale()
		Expect(g.Held()).To(BeTrue())

		fresh()
		Expect(g.Held()).To(BeFalse())
	})
})

var _ = Describe("StateCache", func() {
	It("treats unseen entities as differing", func() {
		cache := NewStateCache[string]()
		Expect(cache.Differs("cell-1", "on")).To(BeTrue())
		Expect(cache.Differs("cell-1", "off")).To(BeTrue())

		cache.Set("cell-1", "on")
		Expect(cache.Differs("cell-1", "on")).To(BeFalse())
		Expect(cache.Differs("cell-1", "off")).To(BeTrue())
		Expect(cache.Len()).To(Equal(1))

		state, ok := cache.Get("cell-1")
		Expect(ok).To(BeTrue())
		Expect(state).To(Equal("on"))
	})
})

var _ = Describe("Loop", func() {
	var cycle *blockingCycle

	BeforeEach(func() {
		cycle = newBlockingCycle()
	})

	It("rejects invalid construction", func() {
		_, err := NewLoop("x", time.Second, nil, nil)
		Expect(err).To(HaveOccurred())
		_, err = NewLoop("x", 0, cycle, nil)
		Expect(err).To(HaveOccurred())
	})

	It("skips an invocation while a cycle is in flight", func() {
		loop, err := NewLoop("test", time.Hour, cycle, nil)
		Expect(err).NotTo(HaveOccurred())

		done := make(chan Outcome, 1)
		go func() {
			outcome, _ := loop.RunOnce(context.Background())
			done <- outcome
		}()
		Eventually(cycle.entered).Should(Receive())

		outcome, err := loop.RunOnce(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(OutcomeSkipped))

		close(cycle.release)
		Eventually(done).Should(Receive(Equal(OutcomeRan)))
		Expect(cycle.runs.Load()).To(Equal(int32(1)))
	})

	It("returns the cycle error with OutcomeRan", func() {
		cycle.err = errors.New("boom")
		close(cycle.release)
		loop, _ := NewLoop("test", time.Hour, cycle, nil)

		outcome, err := loop.RunOnce(context.Background())
		Expect(outcome).To(Equal(OutcomeRan))
		Expect(err).To(MatchError("boom"))
	})

	It("runs immediately on start and drops ticks that overlap a slow cycle", func() {
		loop, _ := NewLoop("test", 10*time.Millisecond, cycle, nil)
		loop.Start(context.Background())
		Eventually(cycle.entered).Should(Receive())

		// Several ticks elapse while the first cycle is parked.
		Consistently(cycle.entered, 60*time.Millisecond).ShouldNot(Receive())
		Expect(cycle.runs.Load()).To(Equal(int32(1)))

		loop.Stop()
		close(cycle.release)
		loop.Wait()
		Expect(loop.Running()).To(BeFalse())
	})

	It("lets an in-flight cycle finish after stop", func() {
		var finished atomic.Bool
		slow := CycleFunc(func(ctx context.Context) error {
			time.Sleep(30 * time.Millisecond)
			finished.Store(ctx.Err() == nil)
			return nil
		})
		loop, _ := NewLoop("test", time.Hour, slow, nil)
		loop.Start(context.Background())
		time.Sleep(5 * time.Millisecond)

		loop.Stop()
		loop.Wait()
		Expect(finished.Load()).To(BeTrue())
	})

	It("ignores a second start and tolerates repeated stops", func() {
		close(cycle.release)
		loop, _ := NewLoop("test", time.Hour, cycle, nil)
		loop.Stop()

		loop.Start(context.Background())
		loop.Start(context.Background())
		Eventually(func() int32 { return cycle.runs.Load() }).Should(Equal(int32(1)))

		loop.Stop()
		loop.Stop()
		loop.Wait()
		Expect(cycle.runs.Load()).To(Equal(int32(1)))
	})

	It("skips triggers after stop until the earlier cycle returns", func() {
		loop, _ := NewLoop("test", time.Hour, cycle, nil)
		loop.Start(context.Background())
		Eventually(cycle.entered).Should(Receive())

		loop.Stop()
		outcome, err := loop.RunOnce(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(OutcomeSkipped))
		Expect(loop.Busy()).To(BeTrue())
		Expect(cycle.runs.Load()).To(Equal(int32(1)))

		close(cycle.release)
		loop.Wait()
		outcome, err = loop.RunOnce(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(OutcomeRan))
		Expect(cycle.runs.Load()).To(Equal(int32(2)))
	})

	It("bounds the wait for a cycle that outlives stop", func() {
		loop, _ := NewLoop("test", time.Hour, cycle, nil)
		loop.Start(context.Background())
		Eventually(cycle.entered).Should(Receive())
		loop.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		start := time.Now()
		Expect(loop.WaitContext(ctx)).To(MatchError(context.DeadlineExceeded))
		Expect(time.Since(start)).To(BeNumerically("<", time.Second))

		close(cycle.release)
		Expect(loop.WaitContext(context.Background())).To(Succeed())
	})
})
