package scheduler_test

import (
	"sync"

	"github.com/opsagent/platform/core/scheduler"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Run guard", func() {
	var guard *scheduler.RunGuard

	BeforeEach(func() {
		guard = scheduler.NewRunGuard()
	})

	It("grants the latch to the first acquirer only", func() {
		Expect(guard.TryAcquire("task-1")).To(BeTrue())
		Expect(guard.TryAcquire("task-1")).To(BeFalse())
		Expect(guard.Running("task-1")).To(BeTrue())
	})

	It("tracks tasks independently", func() {
		Expect(guard.TryAcquire("task-1")).To(BeTrue())
		Expect(guard.TryAcquire("task-2")).To(BeTrue())
	})

	It("is reacquirable after release", func() {
		Expect(guard.TryAcquire("task-1")).To(BeTrue())
		guard.Release("task-1")
		Expect(guard.Running("task-1")).To(BeFalse())
		Expect(guard.TryAcquire("task-1")).To(BeTrue())
	})

	It("admits exactly one of many concurrent acquirers", func() {
		const attempts = 50
		var wg sync.WaitGroup
		var mu sync.Mutex
		granted := 0

		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if guard.TryAcquire("task-1") {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		Expect(granted).To(Equal(1))
	})
})
