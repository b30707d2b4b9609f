package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/transport"
)

// RunPipelineInput is the argument object of the run_pipeline tool.
type RunPipelineInput struct {
	Prompt   string `json:"prompt" jsonschema:"the prompt to enrich and send to the model"`
	Template string `json:"template,omitempty" jsonschema:"enrichment template, e.g. campaign; the server default applies when empty"`
	Engine   string `json:"engine,omitempty" jsonschema:"backend engine, e.g. ollama"`
	Model    string `json:"model,omitempty" jsonschema:"model name, e.g. mistral"`
	System   string `json:"system,omitempty" jsonschema:"additional system instructions"`
	Format   string `json:"format,omitempty" jsonschema:"output format hint, json or empty"`
}

// ListModelsInput is the argument object of the list_models tool.
type ListModelsInput struct {
	Engine string `json:"engine,omitempty" jsonschema:"restrict the listing to one engine"`
}

// newMCPServer exposes runner as MCP tools.
func newMCPServer(runner transport.PipelineRunner, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "anreicher", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_pipeline",
		Description: "Enriches a prompt through a configured template and returns the generated response",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in RunPipelineInput) (*mcp.CallToolResult, any, error) {
		resp, err := runner.RunPipeline(ctx, &api.ConversationRequest{
			Prompt:   in.Prompt,
			Template: in.Template,
			Engine:   in.Engine,
			Model:    in.Model,
			System:   in.System,
			Format:   in.Format,
		})
		if err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(resp.Response), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_models",
		Description: "Lists the models served by the configured engines",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ListModelsInput) (*mcp.CallToolResult, any, error) {
		models, err := runner.ListModels(ctx, in.Engine)
		if err != nil {
			return errorResult(err), nil, nil
		}
		data, err := json.Marshal(models)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding models: %w", err)
		}
		return textResult(string(data)), nil, nil
	})

	return server
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// errorResult reports err as a tool error so the calling model sees it.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: transport.AsAPIError(err).Error()}},
		IsError: true,
	}
}
