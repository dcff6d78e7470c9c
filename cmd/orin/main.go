// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command orin is a thin demonstration CLI around pkg/agent,
// pkg/scheduler, and pkg/workflow: it loads a config file, forks a
// ReAct agent for one of its configured agents, and drives a single
// root task from stdin (or --input) through the task lifecycle,
// streaming every Message the core produces to stdout as it happens.
//
// Usage:
//
//	orin run --config orin.yaml --agent assistant --input "say hello"
//	echo "summarize this repo" | orin run --config orin.yaml
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/orin/pkg/agent"
	"github.com/kadirpekel/orin/pkg/budget"
	"github.com/kadirpekel/orin/pkg/config"
	"github.com/kadirpekel/orin/pkg/config/provider"
	"github.com/kadirpekel/orin/pkg/human"
	"github.com/kadirpekel/orin/pkg/llm"
	"github.com/kadirpekel/orin/pkg/logger"
	"github.com/kadirpekel/orin/pkg/message"
	telemetry "github.com/kadirpekel/orin/pkg/observability"
	"github.com/kadirpekel/orin/pkg/queue"
	"github.com/kadirpekel/orin/pkg/scheduler"
	"github.com/kadirpekel/orin/pkg/task"
	"github.com/kadirpekel/orin/pkg/tool"
	"github.com/kadirpekel/orin/pkg/workflow"
)

// CLI defines the command-line interface.
type CLI struct {
	Run     RunCmd     `cmd:"" help:"Run a single task through one configured agent."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"orin.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (simple, verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("orin version %s\n", version)
	return nil
}

// RunCmd drives a single root task through an agent's workflow and the
// task lifecycle scheduler, streaming every Message produced to stdout.
type RunCmd struct {
	Agent          string `help:"Name of the agent to run, as configured in the config file." default:"assistant"`
	Input          string `help:"Task input text. Defaults to reading stdin if omitted."`
	Tags           string `help:"Comma-separated task tags, gating workflow-local tool access."`
	MaxSteps       int    `name:"max-steps" help:"Step budget before the task is cancelled." default:"25"`
	MaxRevisit     int    `name:"max-revisit" help:"Maximum times any lifecycle state may be revisited before giving up." default:"3"`
	MCPCommand     string `name:"mcp-command" help:"Launch an MCP server over stdio as the external tool service (e.g. 'npx some-mcp-server')."`
	DocsTool       bool   `name:"docs-tool" help:"Register the built-in document-reading tool (PDF/DOCX/XLSX)."`
	Observe        bool   `help:"Enable OpenTelemetry tracing and Prometheus metrics around the agent run."`
	Approve        bool   `help:"Auto-approve every tool call that requires human approval instead of asking through the human client."`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		return err
	}
	logger.Init(level, os.Stderr, cli.LogFormat)

	cfg, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return fmt.Errorf("orin: %w", err)
	}

	agentCfg, ok := cfg.GetAgent(c.Agent)
	if !ok {
		return fmt.Errorf("orin: no agent named %q in %s", c.Agent, cli.Config)
	}

	reasoningStage, err := requiredStage(agentCfg, string(workflow.Reasoning))
	if err != nil {
		return err
	}
	reflectingStage, err := requiredStage(agentCfg, string(workflow.Reflecting))
	if err != nil {
		return err
	}

	reasoningLLM, err := llm.NewService(string(reasoningStage.Provider), nil)
	if err != nil {
		return fmt.Errorf("orin: reasoning stage: %w", err)
	}
	reflectingLLM, err := llm.NewService(string(reflectingStage.Provider), nil)
	if err != nil {
		return fmt.Errorf("orin: reflecting stage: %w", err)
	}

	dispatcher := &tool.Dispatcher{}
	if c.MCPCommand != "" {
		fields := strings.Fields(c.MCPCommand)
		dispatcher.External = tool.NewMCPService(tool.MCPConfig{
			Name:    "orin-run",
			Command: fields[0],
			Args:    fields[1:],
		})
	}

	humanClient := human.Client(human.NewBaseClient())
	if c.Approve {
		humanClient = nil // nil Human means RequiresApproval tools are auto-granted.
	}

	input, err := resolveInput(c.Input)
	if err != nil {
		return err
	}

	tags := splitTags(c.Tags)
	root := task.NewLifecycle("root", tags, nil, 8)
	root.SetInput(input)
	if err := root.Compile(); err != nil {
		return fmt.Errorf("orin: compile task: %w", err)
	}

	w, err := workflow.NewReAct(workflow.ReActConfig[task.LifecycleState, task.LifecycleEvent]{
		Name:             c.Agent,
		ReasoningConfig:  reasoningStage.ToCompletionConfig(),
		ReflectingConfig: reflectingStage.ToCompletionConfig(),
		ReasoningLLM:     reasoningLLM,
		ReflectingLLM:    reflectingLLM,
		ReasoningPrompt:  "You are orin, an agent that completes tasks by reasoning and calling tools. When the task is done, finish your reply with <finish>TRUE</finish>.",
		ReflectingPrompt: "Review the conversation so far; if the task is complete, say so.",
	})
	if err != nil {
		return fmt.Errorf("orin: build workflow: %w", err)
	}
	if c.DocsTool {
		docReader, err := tool.NewDocReader()
		if err != nil {
			return fmt.Errorf("orin: build doc reader tool: %w", err)
		}
		w.AddTool(docReader.Name(), docReader, nil)
	}
	dispatcher.Workflow = w

	var mgr *telemetry.Manager
	if c.Observe {
		mgr, err = telemetry.NewManager(ctx, &telemetry.Config{
			Tracing: telemetry.TracingConfig{Enabled: true, Exporter: "stdout"},
			Metrics: telemetry.MetricsConfig{Enabled: true},
		})
		if err != nil {
			return fmt.Errorf("orin: observability: %w", err)
		}
		defer func() { _ = mgr.Shutdown(context.Background()) }()
	}

	agentCfgOut := agent.Config[task.LifecycleState, task.LifecycleEvent]{
		Name:     c.Agent,
		Type:     agentCfg.Type,
		Workflow: w,
		Services: agent.Services{
			Dispatcher: dispatcher,
			Budget:     budget.NewMaxStepCounter(c.MaxSteps),
			Human:      humanClient,
		},
	}
	if mgr != nil {
		hooks := telemetry.NewAgentHooks[task.LifecycleState, task.LifecycleEvent](mgr.Tracer(), mgr.Metrics(), c.Agent, agentCfg.Type)
		agentCfgOut.PreRunOnceHooks = []agent.RunOnceHook[task.LifecycleState, task.LifecycleEvent]{hooks.PreRunOnce}
		agentCfgOut.PostRunOnceHooks = []agent.RunOnceHook[task.LifecycleState, task.LifecycleEvent]{hooks.PostRunOnce}
	}
	a, err := agent.New(agentCfgOut)
	if err != nil {
		return fmt.Errorf("orin: build agent: %w", err)
	}

	sched, err := buildScheduler(a, c.MaxRevisit)
	if err != nil {
		return fmt.Errorf("orin: build scheduler: %w", err)
	}

	q := queue.NewUnbounded[message.Message]()
	done := make(chan struct{})
	go streamMessages(ctx, q, done)

	runErr := sched.Schedule(ctx, q, root)
	cancel()
	<-done

	if runErr != nil {
		return fmt.Errorf("orin: schedule: %w", runErr)
	}
	if root.IsError() {
		return fmt.Errorf("orin: task failed: %s", root.ErrorInfo())
	}
	fmt.Println("\n--- output ---")
	fmt.Println(root.Output())
	return nil
}

// buildScheduler wires the canonical lifecycle state graph described in
// spec.md §8 scenario 2 around a: RUNNING invokes the agent, COMPLETE or
// FAIL depending on whether the task came back errored, and FAILED
// retries up to maxRevisit times before CANCELED.
func buildScheduler(a *agent.Agent[task.LifecycleState, task.LifecycleEvent], maxRevisit int) (*scheduler.Scheduler[task.LifecycleState, task.LifecycleEvent], error) {
	onState := map[task.LifecycleState]scheduler.Handler[task.LifecycleState, task.LifecycleEvent]{
		task.Inited: func(context.Context, queue.Queue[message.Message], *task.TreeTask[task.LifecycleState, task.LifecycleEvent]) (task.LifecycleEvent, bool, error) {
			return task.Create, true, nil
		},
		task.Created: func(context.Context, queue.Queue[message.Message], *task.TreeTask[task.LifecycleState, task.LifecycleEvent]) (task.LifecycleEvent, bool, error) {
			return task.Run, true, nil
		},
		task.Running: func(ctx context.Context, q queue.Queue[message.Message], t *task.TreeTask[task.LifecycleState, task.LifecycleEvent]) (task.LifecycleEvent, bool, error) {
			if _, err := a.RunTaskStream(ctx, q, t); err != nil {
				t.SetError(err.Error())
				return task.Fail, true, nil
			}
			if t.IsError() {
				return task.Fail, true, nil
			}
			if !t.IsCompleted() {
				t.SetCompleted(lastAssistantText(t))
			}
			return task.Complete, true, nil
		},
	}

	return scheduler.New(scheduler.Config[task.LifecycleState, task.LifecycleEvent]{
		ValidStates: task.LifecycleValidStates,
		EndStates:   []task.LifecycleState{task.Finished, task.Canceled},
		OnState:     onState,
		OnStateChanged: changeHandlers(maxRevisit),
		MaxRevisitCount: maxRevisit,
		Reachability: map[task.LifecycleState][]task.LifecycleState{
			task.Inited:   {task.Created},
			task.Created:  {task.Running},
			task.Running:  {task.Finished, task.Failed, task.Running},
			task.Failed:   {task.Running, task.Canceled},
			task.Finished: {},
			task.Canceled: {},
		},
	})
}

func changeHandlers(maxRevisit int) map[scheduler.TransitionKey[task.LifecycleState]]scheduler.ChangeHandler[task.LifecycleState, task.LifecycleEvent] {
	retryOrCancel := func(_ context.Context, _ queue.Queue[message.Message], t *task.TreeTask[task.LifecycleState, task.LifecycleEvent], _, _ task.LifecycleState) (task.LifecycleEvent, bool, error) {
		if t.StateVisitCount(task.Failed) < maxRevisit {
			return task.Retry, true, nil
		}
		return task.Cancel, true, nil
	}
	return map[scheduler.TransitionKey[task.LifecycleState]]scheduler.ChangeHandler[task.LifecycleState, task.LifecycleEvent]{
		{From: task.Created, To: task.Running}: noChange,
		{From: task.Running, To: task.Finished}: noChange,
		{From: task.Running, To: task.Failed}:   retryOrCancel,
	}
}

func noChange(context.Context, queue.Queue[message.Message], *task.TreeTask[task.LifecycleState, task.LifecycleEvent], task.LifecycleState, task.LifecycleState) (task.LifecycleEvent, bool, error) {
	return "", false, nil
}

func lastAssistantText(t *task.TreeTask[task.LifecycleState, task.LifecycleEvent]) string {
	msgs := t.Context().Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == message.RoleAssistant {
			return msgs[i].Text()
		}
	}
	return ""
}

func streamMessages(ctx context.Context, q queue.Queue[message.Message], done chan<- struct{}) {
	defer close(done)
	for {
		m, err := q.Get(ctx)
		if err != nil {
			return
		}
		printMessage(m)
	}
}

func printMessage(m message.Message) {
	switch m.Role {
	case message.RoleTool:
		status := "ok"
		if m.IsError {
			status = "error"
		}
		fmt.Printf("[tool:%s] %s\n", status, m.Text())
	case message.RoleAssistant:
		if text := m.Text(); text != "" {
			fmt.Printf("[assistant] %s\n", text)
		}
		for _, call := range m.ToolCalls {
			fmt.Printf("[assistant] calling tool %q\n", call.Name)
		}
	case message.RoleUser:
		fmt.Printf("[user] %s\n", m.Text())
	}
}

func resolveInput(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", fmt.Errorf("no --input given and stdin is not piped")
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	p, err := provider.NewFileProvider(path)
	if err != nil {
		return nil, err
	}
	return config.NewLoader(p).Load(ctx)
}

func requiredStage(agentCfg *config.AgentConfig, stage string) (*config.StageConfig, error) {
	stageCfg, ok := agentCfg.Stage(stage)
	if !ok {
		return nil, fmt.Errorf("agent has no %q stage configured", stage)
	}
	return stageCfg, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("orin"),
		kong.Description("orin: an LLM agent orchestration runtime"),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
