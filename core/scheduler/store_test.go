package scheduler_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/opsagent/platform/core/scheduler"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("File store", func() {
	var (
		root  string
		store *scheduler.FileStore
	)

	BeforeEach(func() {
		var err error
		root, err = os.MkdirTemp("", "taskstore_test_*")
		Expect(err).NotTo(HaveOccurred())
		store, err = scheduler.NewFileStore(root)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(root)
	})

	Describe("Task documents", func() {
		It("round-trips a task without structural drift", func() {
			task := scheduler.NewTask("health check", "pings prometheus", "agent-sre", "proj-1", "*/5 * * * *", "report cluster health", true)
			executed := time.Now().Add(-time.Hour)
			task.LastExecutedAt = &executed

			Expect(store.SaveTask(task)).To(Succeed())

			retrieved, err := store.LoadTask(task.ID)
			Expect(err).NotTo(HaveOccurred())

			want, err := json.Marshal(task)
			Expect(err).NotTo(HaveOccurred())
			got, err := json.Marshal(retrieved)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(got)).To(MatchJSON(string(want)))
		})

		It("replaces an existing document on save", func() {
			task := scheduler.NewTask("a", "", "agent", "", "* * * * *", "p", false)
			Expect(store.SaveTask(task)).To(Succeed())

			task.Prompt = "updated prompt"
			Expect(store.SaveTask(task)).To(Succeed())

			retrieved, err := store.LoadTask(task.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Prompt).To(Equal("updated prompt"))
		})

		It("returns the not-found sentinel for unknown ids", func() {
			_, err := store.LoadTask("no-such-task")
			Expect(err).To(MatchError(scheduler.ErrTaskNotFound))
		})

		It("loads all tasks and skips unreadable documents", func() {
			for i := 0; i < 3; i++ {
				task := scheduler.NewTask(fmt.Sprintf("task-%d", i), "", "agent", "", "* * * * *", "p", false)
				Expect(store.SaveTask(task)).To(Succeed())
			}
			Expect(os.WriteFile(filepath.Join(root, "garbage.json"), []byte("{not json"), 0644)).To(Succeed())

			tasks, err := store.LoadAllTasks()
			Expect(err).NotTo(HaveOccurred())
			Expect(tasks).To(HaveLen(3))
		})

		It("does not block writers for different tasks", func() {
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					task := scheduler.NewTask(fmt.Sprintf("parallel-%d", i), "", "agent", "", "* * * * *", "p", false)
					Expect(store.SaveTask(task)).To(Succeed())
				}(i)
			}
			wg.Wait()

			tasks, err := store.LoadAllTasks()
			Expect(err).NotTo(HaveOccurred())
			Expect(tasks).To(HaveLen(10))
		})

		It("rejects ids that would escape the root", func() {
			_, err := store.LoadTask("../escape")
			Expect(err).To(MatchError(scheduler.ErrTaskNotFound))
		})
	})

	Describe("Execution documents", func() {
		var task *scheduler.Task

		BeforeEach(func() {
			task = scheduler.NewTask("t", "", "agent", "", "* * * * *", "p", false)
			Expect(store.SaveTask(task)).To(Succeed())
		})

		It("saves and reloads an execution", func() {
			execution := scheduler.NewExecution(task.ID, true)
			execution.Finalize(scheduler.ExecutionStatusSuccess, &scheduler.Result{
				Messages: []scheduler.Message{{Role: "assistant", Content: "done"}},
				Summary:  "done",
			}, "")
			Expect(store.SaveExecution(task.ID, execution)).To(Succeed())

			retrieved, err := store.LoadExecution(task.ID, execution.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Status).To(Equal(scheduler.ExecutionStatusSuccess))
			Expect(retrieved.Result.Summary).To(Equal("done"))
			Expect(retrieved.EndTime).NotTo(BeNil())
		})

		It("returns the not-found sentinel for unknown executions", func() {
			_, err := store.LoadExecution(task.ID, "no-such-execution")
			Expect(err).To(MatchError(scheduler.ErrExecutionNotFound))
		})

		It("lists executions newest first with pagination", func() {
			base := time.Now().Add(-time.Hour)
			for i := 0; i < 5; i++ {
				execution := scheduler.NewExecution(task.ID, false)
				execution.ID = fmt.Sprintf("exec-%d", i)
				execution.StartTime = base.Add(time.Duration(i) * time.Minute)
				Expect(store.SaveExecution(task.ID, execution)).To(Succeed())
			}

			page, total, err := store.ListExecutions(task.ID, 2, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(5))
			Expect(page).To(HaveLen(2))
			Expect(page[0].ID).To(Equal("exec-4"))
			Expect(page[1].ID).To(Equal("exec-3"))

			page, total, err = store.ListExecutions(task.ID, 10, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(5))
			Expect(page).To(HaveLen(1))
			Expect(page[0].ID).To(Equal("exec-0"))
		})

		It("returns an empty page for a task with no history", func() {
			page, total, err := store.ListExecutions(task.ID, 10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeZero())
			Expect(page).To(BeEmpty())
		})
	})

	Describe("Deletion", func() {
		It("purges the definition and all executions", func() {
			task := scheduler.NewTask("doomed", "", "agent", "", "* * * * *", "p", false)
			Expect(store.SaveTask(task)).To(Succeed())
			execution := scheduler.NewExecution(task.ID, false)
			Expect(store.SaveExecution(task.ID, execution)).To(Succeed())

			Expect(store.DeleteTask(task.ID)).To(Succeed())

			_, err := store.LoadTask(task.ID)
			Expect(err).To(MatchError(scheduler.ErrTaskNotFound))
			_, err = os.Stat(filepath.Join(root, task.ID))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("purges orphaned executions when the definition is already gone", func() {
			task := scheduler.NewTask("orphaned", "", "agent", "", "* * * * *", "p", false)
			Expect(store.SaveTask(task)).To(Succeed())
			execution := scheduler.NewExecution(task.ID, false)
			Expect(store.SaveExecution(task.ID, execution)).To(Succeed())
			Expect(os.Remove(filepath.Join(root, task.ID+".json"))).To(Succeed())

			Expect(store.DeleteTask(task.ID)).To(MatchError(scheduler.ErrTaskNotFound))

			_, err := os.Stat(filepath.Join(root, task.ID))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("reports deleting an unknown task", func() {
			Expect(store.DeleteTask("no-such-task")).To(MatchError(scheduler.ErrTaskNotFound))
		})
	})

	Describe("Persistence across instances", func() {
		It("sees documents written by a previous store", func() {
			task := scheduler.NewTask("persisted", "", "agent", "", "* * * * *", "p", false)
			Expect(store.SaveTask(task)).To(Succeed())

			reopened, err := scheduler.NewFileStore(root)
			Expect(err).NotTo(HaveOccurred())
			retrieved, err := reopened.LoadTask(task.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Name).To(Equal("persisted"))
		})
	})
})
