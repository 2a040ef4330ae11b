package scheduler_test

import (
	"time"

	"github.com/opsagent/platform/core/scheduler"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Cron evaluator", func() {
	Describe("ValidateCronExpression", func() {
		It("accepts standard 5-field expressions", func() {
			for _, expr := range []string{
				"* * * * *",
				"*/1 * * * *",
				"0 0 * * *",
				"15 2,14 * * 1-5",
				"*/10 0-6 1,15 * *",
				"30 4 1 1 0",
			} {
				Expect(scheduler.ValidateCronExpression(expr)).To(BeTrue(), "expected %q to validate", expr)
			}
		})

		It("rejects malformed expressions", func() {
			for _, expr := range []string{
				"",
				"* * * *",
				"* * * * * *",
				"60 * * * *",
				"* 24 * * *",
				"* * 32 * *",
				"* * * 13 *",
				"foo bar baz qux quux",
				"@hourly",
			} {
				Expect(scheduler.ValidateCronExpression(expr)).To(BeFalse(), "expected %q to be rejected", expr)
			}
		})
	})

	Describe("ParseCronExpression", func() {
		It("wraps failures in the invalid-cron sentinel", func() {
			_, err := scheduler.ParseCronExpression("61 * * * *")
			Expect(err).To(MatchError(scheduler.ErrInvalidCronExpression))

			_, err = scheduler.ParseCronExpression("* * *")
			Expect(err).To(MatchError(scheduler.ErrInvalidCronExpression))
		})
	})

	Describe("NextFireTime", func() {
		It("returns an instant strictly after the reference", func() {
			after := time.Now()
			for _, expr := range []string{"*/1 * * * *", "0 0 * * *", "30 12 * * 3"} {
				next, ok := scheduler.NextFireTime(expr, after)
				Expect(ok).To(BeTrue())
				Expect(next.After(after)).To(BeTrue(), "expected %q to fire after the reference", expr)
			}
		})

		It("advances to the next minute boundary for every-minute schedules", func() {
			after := time.Date(2026, 3, 1, 10, 30, 30, 0, time.Local)
			next, ok := scheduler.NextFireTime("*/1 * * * *", after)
			Expect(ok).To(BeTrue())
			Expect(next).To(Equal(time.Date(2026, 3, 1, 10, 31, 0, 0, time.Local)))
		})

		It("never fires in the same instant", func() {
			after := time.Date(2026, 3, 1, 10, 31, 0, 0, time.Local)
			next, ok := scheduler.NextFireTime("31 10 * * *", after)
			Expect(ok).To(BeTrue())
			Expect(next.After(after)).To(BeTrue())
		})

		It("reports malformed expressions instead of panicking", func() {
			_, ok := scheduler.NextFireTime("not a cron", time.Now())
			Expect(ok).To(BeFalse())
		})
	})
})
