package sandbox_test

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/upi-sandbox/internal/sandbox"
	"github.com/jonboulle/clockwork"
)

var _ = Describe("Scheduler", func() {
	var (
		clock     *clockwork.FakeClock
		scheduler *sandbox.Scheduler
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		clock = clockwork.NewFakeClock()
		scheduler = sandbox.NewScheduler(clock)
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	})

	AfterEach(func() {
		scheduler.Stop()
		cancel()
	})

	It("should run the task once after the delay", func() {
		var runs atomic.Int32
		Expect(scheduler.Schedule("pay_1", time.Second, func() { runs.Add(1) })).To(BeTrue())
		Expect(scheduler.Pending()).To(Equal(1))

		Expect(clock.BlockUntilContext(ctx, 1)).To(Succeed())
		clock.Advance(999 * time.Millisecond)
		Expect(runs.Load()).To(BeZero())

		clock.Advance(time.Millisecond)
		Eventually(runs.Load).Should(Equal(int32(1)))
		Expect(scheduler.Pending()).To(BeZero())

		clock.Advance(time.Hour)
		Consistently(runs.Load, "50ms").Should(Equal(int32(1)))
	})

	It("should refuse a second task for the same id", func() {
		var first, second atomic.Int32
		Expect(scheduler.Schedule("pay_1", time.Second, func() { first.Add(1) })).To(BeTrue())
		Expect(scheduler.Schedule("pay_1", time.Millisecond, func() { second.Add(1) })).To(BeFalse())

		clock.Advance(time.Second)
		Eventually(first.Load).Should(Equal(int32(1)))
		Expect(second.Load()).To(BeZero())
	})

	It("should not run a cancelled task", func() {
		var runs atomic.Int32
		scheduler.Schedule("pay_1", time.Second, func() { runs.Add(1) })

		Expect(scheduler.Cancel("pay_1")).To(BeTrue())
		Expect(scheduler.Cancel("pay_1")).To(BeFalse())
		Expect(scheduler.Pending()).To(BeZero())

		clock.Advance(2 * time.Second)
		Consistently(runs.Load, "50ms").Should(BeZero())
	})

	It("should keep tasks for different ids independent", func() {
		var fast, slow atomic.Int32
		scheduler.Schedule("pay_fast", time.Second, func() { fast.Add(1) })
		scheduler.Schedule("pay_slow", 5*time.Second, func() { slow.Add(1) })

		clock.Advance(time.Second)
		Eventually(fast.Load).Should(Equal(int32(1)))
		Expect(slow.Load()).To(BeZero())
		Expect(scheduler.Pending()).To(Equal(1))

		clock.Advance(4 * time.Second)
		Eventually(slow.Load).Should(Equal(int32(1)))
	})

	It("should drop pending tasks and reject new ones after Stop", func() {
		var runs atomic.Int32
		scheduler.Schedule("pay_1", time.Second, func() { runs.Add(1) })

		scheduler.Stop()
		Expect(scheduler.Pending()).To(BeZero())
		Expect(scheduler.Schedule("pay_2", time.Second, func() { runs.Add(1) })).To(BeFalse())

		clock.Advance(time.Minute)
		Consistently(runs.Load, "50ms").Should(BeZero())
	})
})
