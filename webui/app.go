package webui

import (
	"errors"
	"strings"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/opsagent/platform/core/scheduler"
	"github.com/opsagent/platform/webui/types"
)

type App struct {
	config *Config
	*fiber.App
}

// NewApp builds the administrative HTTP surface. Every route maps 1:1
// onto a scheduler or store operation.
func NewApp(opts ...Option) *App {
	config := NewConfig(opts...)

	a := &App{
		config: config,
		App:    fiber.New(fiber.Config{DisableStartupMessage: true}),
	}
	a.registerRoutes()
	return a
}

// statusFor maps scheduler error kinds onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scheduler.ErrTaskNotFound), errors.Is(err, scheduler.ErrExecutionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, scheduler.ErrInvalidCronExpression):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}

func (a *App) ListTasks() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		tasks, err := a.config.Scheduler.ListTasks()
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"tasks": tasks})
	}
}

func (a *App) CreateTask() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		request := types.CreateTaskRequest{}
		if err := c.BodyParser(&request); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if strings.TrimSpace(request.Name) == "" || strings.TrimSpace(request.AgentID) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name and agentId are required"})
		}
		task := scheduler.NewTask(
			request.Name,
			request.Description,
			request.AgentID,
			request.ProjectID,
			request.CronExpression,
			request.Prompt,
			request.Enabled,
		)
		if err := a.config.Scheduler.CreateTask(task); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "task": task})
	}
}

func (a *App) GetTask() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		task, err := a.config.Scheduler.GetTask(c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(task)
	}
}

func (a *App) UpdateTask() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		task, err := a.config.Scheduler.GetTask(c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		request := types.UpdateTaskRequest{}
		if err := c.BodyParser(&request); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if request.Name != nil {
			task.Name = *request.Name
		}
		if request.Description != nil {
			task.Description = *request.Description
		}
		if request.AgentID != nil {
			task.AgentID = *request.AgentID
		}
		if request.ProjectID != nil {
			task.ProjectID = *request.ProjectID
		}
		if request.CronExpression != nil {
			task.CronExpression = *request.CronExpression
		}
		if request.Prompt != nil {
			task.Prompt = *request.Prompt
		}
		if request.Enabled != nil {
			task.Enabled = *request.Enabled
		}
		if err := a.config.Scheduler.UpdateTask(task); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "task": task})
	}
}

func (a *App) DeleteTask() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		if err := a.config.Scheduler.DeleteTask(c.Params("id")); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

func (a *App) EnableTask() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		task, err := a.config.Scheduler.EnableTask(c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "task": task})
	}
}

func (a *App) DisableTask() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		task, err := a.config.Scheduler.DisableTask(c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "task": task})
	}
}

func (a *App) TriggerTask() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := a.config.Scheduler.GetTask(id); err != nil {
			return fail(c, err)
		}
		execution := a.config.Scheduler.TriggerTask(c.Context(), id)
		return c.JSON(fiber.Map{"success": true, "execution": execution})
	}
}

func (a *App) ListExecutions() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := a.config.Scheduler.GetTask(id); err != nil {
			return fail(c, err)
		}
		executions, total, err := a.config.Scheduler.ListExecutions(id, c.QueryInt("limit", 0), c.QueryInt("offset", 0))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"executions": executions, "total": total})
	}
}

func (a *App) GetExecution() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		execution, err := a.config.Scheduler.GetExecution(c.Params("id"), c.Params("execId"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(execution)
	}
}

func (a *App) ValidateCron() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		expression := c.Query("expression")
		return c.JSON(fiber.Map{
			"expression": expression,
			"valid":      scheduler.ValidateCronExpression(expression),
		})
	}
}
