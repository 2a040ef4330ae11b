package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mudler/xlog"

	"github.com/opsagent/platform/core/scheduler"
	"github.com/opsagent/platform/core/sse"
	"github.com/opsagent/platform/llm"
	"github.com/opsagent/platform/webui"
)

var model = os.Getenv("OPSAGENT_MODEL")
var apiURL = os.Getenv("OPSAGENT_LLM_API_URL")
var apiKey = os.Getenv("OPSAGENT_LLM_API_KEY")
var timeout = os.Getenv("OPSAGENT_TIMEOUT")
var stateDir = os.Getenv("OPSAGENT_STATE_DIR")
var listenAddr = os.Getenv("OPSAGENT_LISTEN_ADDR")
var apiKeysEnv = os.Getenv("OPSAGENT_API_KEYS")

func init() {
	if model == "" {
		panic("OPSAGENT_MODEL not set")
	}
	if apiURL == "" {
		panic("OPSAGENT_LLM_API_URL not set")
	}
	if timeout == "" {
		timeout = "10m"
	}
	if listenAddr == "" {
		listenAddr = ":3000"
	}
	if stateDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			panic(err)
		}
		stateDir = filepath.Join(cwd, "state")
	}
}

func main() {
	executionTimeout, err := time.ParseDuration(timeout)
	if err != nil {
		panic("invalid OPSAGENT_TIMEOUT: " + err.Error())
	}

	apiKeys := []string{}
	if apiKeysEnv != "" {
		apiKeys = strings.Split(apiKeysEnv, ",")
	}

	store, err := scheduler.NewFileStore(filepath.Join(stateDir, "tasks"))
	if err != nil {
		panic(err)
	}

	events := sse.NewManager(20)
	invoker := llm.NewInvoker(llm.NewClient(apiKey, apiURL), model)

	sched := scheduler.New(store, store, invoker,
		scheduler.WithExecutionTimeout(executionTimeout),
		scheduler.WithExecutionListener(func(execution scheduler.Execution) {
			events.Publish(sse.NewEvent("execution", execution))
		}),
	)
	if err := sched.Start(); err != nil {
		panic(err)
	}

	app := webui.NewApp(
		webui.WithScheduler(sched),
		webui.WithEvents(events),
		webui.WithApiKeys(apiKeys),
	)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		xlog.Info("Shutting down")
		sched.Stop()
		_ = app.Shutdown()
	}()

	xlog.Info("Starting server", "addr", listenAddr, "state_dir", stateDir, "model", model)
	if err := app.Listen(listenAddr); err != nil {
		xlog.Error("Server stopped", "error", err)
	}
}
