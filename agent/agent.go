package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/sirupsen/logrus"

	"github.com/intility/dadp-mcp-go-live/config"
	"github.com/intility/dadp-mcp-go-live/tools"
)

const systemPrompt = `You are the go-live assistant for MCP servers at Intility. You help developers submit go-live reports for their MCP servers and help the platform team follow up on review status.

Tools:
- list_servers: list submitted reports, optionally filtered by status (pending_review, approved, rejected, all).
- get_report: show one report in full, by ID.
- submit_report: submit a finished go-live report in markdown.

Rules:
- Never invent report IDs, statuses or reviewers. Look them up with a tool.
- Before calling submit_report make sure you have server_name, repository_url, developer_email and the complete report markdown. Ask the user for anything missing.
- Never submit the same repository twice; check list_servers first if unsure.
- Tool output is already markdown. Summarize it for the user instead of repeating it verbatim.
- When you are done, answer in plain markdown without calling a tool.`

const submitTool = "submit_report"

type ThoughtMsg struct{ Content string }
type ToolCallMsg struct{ Content string }
type ToolResultMsg struct{ Content string }
type FinalResultMsg struct{ Content string }
type TokenUsageMsg struct{ Tokens int }
type ErrMsg struct{ Err error }

type UsageStats struct {
	tokenUsage int
}

func (s UsageStats) Tokens() int { return s.tokenUsage }

type Option func(*Agent)

// WithLogger sets the logger used for tool and completion diagnostics.
func WithLogger(logger *logrus.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithRequestOptions passes extra options to the OpenAI client.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(a *Agent) { a.requestOptions = append(a.requestOptions, opts...) }
}

type Agent struct {
	config         *config.Config
	client         *openai.Client
	memory         []openai.ChatCompletionMessageParamUnion
	toolsRegistry  *tools.Registry
	stats          UsageStats
	logger         *logrus.Logger
	requestOptions []option.RequestOption

	// attachment is merged into the report_json of the next submit_report call.
	attachment map[string]any
}

func NewAgent(tr *tools.Registry, cfg *config.Config, opts ...Option) *Agent {
	a := &Agent{
		config:        cfg,
		toolsRegistry: tr,
		memory:        []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(systemPrompt)},
		logger:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}

	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(cfg.AssistantApiKey),
		option.WithBaseURL(cfg.AssistantBaseUrl),
	}, a.requestOptions...)
	client := openai.NewClient(clientOpts...)
	a.client = &client
	return a
}

func (a *Agent) GetStats() UsageStats {
	return a.stats
}

// Attach stores a structured payload for the next submit_report call.
func (a *Agent) Attach(payload map[string]any) {
	a.attachment = payload
}

func (a *Agent) Attachment() map[string]any {
	return a.attachment
}

func (a *Agent) completion(ctx context.Context) (*openai.ChatCompletion, error) {
	return a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: a.memory,
		Model:    a.config.AssistantModel,
		Tools:    a.toolsRegistry.OpenAITools(),
	})
}

// Start runs the tool-calling loop for one user message. Progress is reported
// on msgCh; the loop ends with exactly one FinalResultMsg or ErrMsg.
func (a *Agent) Start(ctx context.Context, userMessage string, msgCh chan<- tea.Msg) {
	a.memory = append(a.memory, openai.UserMessage(userMessage))

	for iter := 0; iter < a.config.AssistantMaxIterations; iter++ {
		completion, err := a.completion(ctx)
		if err != nil {
			a.logger.WithError(err).Error("completion failed")
			msgCh <- ErrMsg{Err: err}
			return
		}
		if completion == nil || len(completion.Choices) == 0 {
			a.logger.Warn("empty completion")
			msgCh <- ErrMsg{Err: fmt.Errorf("empty completion")}
			return
		}

		a.stats.tokenUsage += int(completion.Usage.TotalTokens)
		msgCh <- TokenUsageMsg{Tokens: a.stats.tokenUsage}

		assistantMsg := completion.Choices[0].Message
		a.memory = append(a.memory, assistantMsg.ToParam())

		if len(assistantMsg.ToolCalls) == 0 {
			msgCh <- FinalResultMsg{Content: assistantMsg.Content}
			return
		}

		if assistantMsg.Content != "" {
			msgCh <- ThoughtMsg{Content: assistantMsg.Content}
		}

		// Every tool call needs an answer before the next completion.
		for _, toolCall := range assistantMsg.ToolCalls {
			resp := a.runTool(ctx, toolCall.Function.Name, toolCall.Function.Arguments, msgCh)
			a.memory = append(a.memory, openai.ToolMessage(resp, toolCall.ID))
		}
	}

	msgCh <- FinalResultMsg{Content: "failed: max iterations reached"}
}

func (a *Agent) runTool(ctx context.Context, name, args string, msgCh chan<- tea.Msg) string {
	log := a.logger.WithField("tool", name)

	if name == submitTool && a.attachment != nil {
		merged, err := mergeAttachment(args, a.attachment)
		if err != nil {
			log.WithError(err).Warn("could not merge attachment")
		} else {
			args = merged
		}
	}

	msgCh <- ToolCallMsg{Content: fmt.Sprintf("%s(%s)", name, args)}

	tool, ok := a.toolsRegistry.Get(name)
	if !ok {
		errMsg := fmt.Sprintf("unknown tool: %s", name)
		msgCh <- ToolResultMsg{Content: errMsg}
		return errMsg
	}

	resp, err := tool.Call(ctx, json.RawMessage(args))
	if err != nil {
		log.WithError(err).Warn("tool call failed")
		errMsg := fmt.Sprintf("tool error: %v", err)
		msgCh <- ToolResultMsg{Content: errMsg}
		return errMsg
	}

	if name == submitTool {
		a.attachment = nil
	}

	msgCh <- ToolResultMsg{Content: resp}
	return resp
}

// mergeAttachment adds payload to the report_json object of raw tool
// arguments. Keys from payload win over keys the model supplied.
func mergeAttachment(raw string, payload map[string]any) (string, error) {
	args := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return "", fmt.Errorf("decode arguments: %w", err)
		}
	}

	merged := map[string]any{}
	if existing, ok := args["report_json"].(map[string]any); ok {
		maps.Copy(merged, existing)
	}
	maps.Copy(merged, payload)
	args["report_json"] = merged

	out, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode arguments: %w", err)
	}
	return string(out), nil
}
