package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/deskbot/internal/actions"
	"github.com/rendis/deskbot/internal/engine"
	"github.com/rendis/deskbot/internal/job"
	"github.com/rendis/deskbot/pkg/schema"
)

// RunService loads, validates and runs job files.
type RunService interface {
	Run(ctx context.Context, req job.RunRequest) (*engine.RunResult, error)
	Validate(path string) (*schema.ValidationResult, error)
}

// HistoryService answers run history queries.
type HistoryService interface {
	Query(ctx context.Context, q job.HistoryQuery) (any, error)
}

// ActionCatalog lists the step kinds a job file can use.
type ActionCatalog interface {
	Actions() []actions.Info
}

// ServerDeps holds the dependencies for creating a DeskbotServer.
type ServerDeps struct {
	Jobs    RunService
	History HistoryService // optional; deskbot.history fails without it
	Actions ActionCatalog  // optional; defaults to the built-in actions
	// ConfigPath is used when a tool call omits config_path.
	ConfigPath string
	Version    string
	Logger     *slog.Logger
}

// DeskbotServer wraps an MCP server with deskbot tool handlers.
type DeskbotServer struct {
	jobs       RunService
	history    HistoryService
	actions    ActionCatalog
	configPath string
	logger     *slog.Logger
	mcpServer  *server.MCPServer
}

// NewDeskbotServer creates a DeskbotServer with all tools registered.
func NewDeskbotServer(deps ServerDeps) *DeskbotServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	configPath := deps.ConfigPath
	if configPath == "" {
		configPath = job.DefaultFileName
	}

	catalog := deps.Actions
	if catalog == nil {
		catalog = defaultCatalog{actions.DefaultRegistry()}
	}

	s := &DeskbotServer{
		jobs:       deps.Jobs,
		history:    deps.History,
		actions:    catalog,
		configPath: configPath,
		logger:     logger,
	}

	mcpSrv := server.NewMCPServer(
		"deskbot",
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
		server.WithRecovery(),
		server.WithInstructions("deskbot replays a list of desktop UI actions once per spreadsheet row. Use deskbot.actions to list the step kinds, deskbot.validate to check a job file, deskbot.run to run it against the live desktop, and deskbot.history to inspect past runs. Runs move the real mouse and keyboard."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *DeskbotServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *DeskbotServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *DeskbotServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: historyTool(), Handler: s.handleHistory},
		{Tool: actionsTool(), Handler: s.handleActions},
	}
}

type defaultCatalog struct{ registry *actions.Registry }

func (c defaultCatalog) Actions() []actions.Info { return c.registry.List() }

// --- Tool definitions ---

func runTool() mcp.Tool {
	return mcp.NewTool("deskbot.run",
		mcp.WithDescription("Run a job file against the live desktop"),
		mcp.WithString("config_path", mcp.Description("Path to the job file (default: the server's job file)")),
		mcp.WithNumber("limit", mcp.Description("Process at most this many records (0 = all)")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("deskbot.validate",
		mcp.WithDescription("Validate a job file without running it"),
		mcp.WithString("config_path", mcp.Description("Path to the job file (default: the server's job file)")),
	)
}

func actionsTool() mcp.Tool {
	return mcp.NewTool("deskbot.actions",
		mcp.WithDescription("List the step kinds a job file can use"),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("deskbot.history",
		mcp.WithDescription("List past runs or show one run in detail"),
		mcp.WithString("run_id", mcp.Description("Show the records and events of this run")),
		mcp.WithString("status",
			mcp.Enum(
				string(schema.RunStatusCompleted),
				string(schema.RunStatusAborted),
				string(schema.RunStatusFailed),
				string(schema.RunStatusProcessing),
			),
			mcp.Description("Only list runs with this status"),
		),
		mcp.WithNumber("limit", mcp.Description("Maximum runs to list (default 20)")),
		mcp.WithString("jq", mcp.Description("jq program applied to the result")),
	)
}
