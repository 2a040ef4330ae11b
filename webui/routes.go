package webui

import (
	"crypto/subtle"

	"github.com/dave-gray101/v2keyauth"
	fiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
)

func (a *App) registerRoutes() {
	if len(a.config.ApiKeys) > 0 {
		kaConfig, err := GetKeyAuthConfig(a.config.ApiKeys)
		if err != nil || kaConfig == nil {
			panic(err)
		}
		a.Use(v2keyauth.New(*kaConfig))
	}

	a.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	if a.config.Events != nil {
		a.Get("/sse/executions", func(c *fiber.Ctx) error {
			return a.config.Events.Handle(c)
		})
	}

	a.Get("/api/scheduled-tasks", a.ListTasks())
	a.Post("/api/scheduled-tasks", a.CreateTask())
	a.Get("/api/scheduled-tasks/validate-cron", a.ValidateCron())
	a.Get("/api/scheduled-tasks/:id", a.GetTask())
	a.Put("/api/scheduled-tasks/:id", a.UpdateTask())
	a.Delete("/api/scheduled-tasks/:id", a.DeleteTask())
	a.Post("/api/scheduled-tasks/:id/enable", a.EnableTask())
	a.Post("/api/scheduled-tasks/:id/disable", a.DisableTask())
	a.Post("/api/scheduled-tasks/:id/trigger", a.TriggerTask())
	a.Get("/api/scheduled-tasks/:id/executions", a.ListExecutions())
	a.Get("/api/scheduled-tasks/:id/executions/:execId", a.GetExecution())
}

func GetKeyAuthConfig(apiKeys []string) (*v2keyauth.Config, error) {
	customLookup, err := v2keyauth.MultipleKeySourceLookup([]string{"header:Authorization", "header:x-api-key"}, keyauth.ConfigDefault.AuthScheme)
	if err != nil {
		return nil, err
	}

	return &v2keyauth.Config{
		CustomKeyLookup: customLookup,
		Next:            func(c *fiber.Ctx) bool { return false },
		Validator:       getApiKeyValidationFunction(apiKeys),
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			ctx.Set("WWW-Authenticate", "Bearer")
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		},
		AuthScheme: "Bearer",
	}, nil
}

func getApiKeyValidationFunction(apiKeys []string) func(*fiber.Ctx, string) (bool, error) {
	return func(ctx *fiber.Ctx, apiKey string) (bool, error) {
		for _, validKey := range apiKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
				return true, nil
			}
		}
		return false, v2keyauth.ErrMissingOrMalformedAPIKey
	}
}
