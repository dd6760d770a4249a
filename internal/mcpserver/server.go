// Package mcpserver exposes the conversation archive to MCP clients over
// stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwulff/mixdesk/internal/db"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Archive is the read side of the conversation store.
type Archive interface {
	ListConversations(limit int) ([]db.Conversation, error)
	Conversation(id string) (*db.Conversation, error)
	TurnsForConversation(conversationID string) ([]db.Turn, error)
}

const defaultListLimit = 20

// New builds an MCP server with the archive tools registered.
func New(archive Archive, version string) *server.MCPServer {
	s := server.NewMCPServer("mixdesk", version, server.WithToolCapabilities(false))
	h := handlers{archive: archive}

	s.AddTool(mcp.NewTool("list_conversations",
		mcp.WithDescription("List recent mix analysis conversations, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of conversations (default 20).")),
	), h.listConversations)

	s.AddTool(mcp.NewTool("get_conversation",
		mcp.WithDescription("Get one analysis conversation with all of its turns."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Conversation id from list_conversations.")),
	), h.getConversation)

	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(archive Archive, version string) error {
	return server.ServeStdio(New(archive, version))
}

type handlers struct {
	archive Archive
}

type conversationJSON struct {
	ID             string     `json:"id"`
	SessionID      string     `json:"sessionId"`
	AudioPath      string     `json:"audioPath"`
	StartSec       float64    `json:"startSec"`
	EndSec         float64    `json:"endSec"`
	ModelID        string     `json:"modelId"`
	Temperature    float64    `json:"temperature"`
	ThinkingBudget int        `json:"thinkingBudget,omitempty"`
	Prompt         string     `json:"prompt"`
	CreatedAt      string     `json:"createdAt"`
	TurnCount      int        `json:"turnCount,omitempty"`
	Turns          []turnJSON `json:"turns,omitempty"`
}

type turnJSON struct {
	Seq  int    `json:"seq"`
	Role string `json:"role"`
	Text string `json:"text"`
}

func toJSON(c db.Conversation) conversationJSON {
	return conversationJSON{
		ID:             c.ID,
		SessionID:      c.SessionID,
		AudioPath:      c.AudioPath,
		StartSec:       c.StartSec,
		EndSec:         c.EndSec,
		ModelID:        c.ModelID,
		Temperature:    c.Temperature,
		ThinkingBudget: c.ThinkingBudget,
		Prompt:         c.Prompt,
		CreatedAt:      c.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		TurnCount:      c.TurnCount,
	}
}

func (h handlers) listConversations(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	convs, err := h.archive.ListConversations(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list conversations: %v", err)), nil
	}
	out := make([]conversationJSON, 0, len(convs))
	for _, c := range convs {
		out = append(out, toJSON(c))
	}
	return jsonResult(out)
}

func (h handlers) getConversation(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := h.archive.Conversation(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get conversation: %v", err)), nil
	}
	if c == nil {
		return mcp.NewToolResultError(fmt.Sprintf("conversation %q not found", id)), nil
	}
	turns, err := h.archive.TurnsForConversation(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get turns: %v", err)), nil
	}

	out := toJSON(*c)
	out.TurnCount = len(turns)
	for _, t := range turns {
		out.Turns = append(out.Turns, turnJSON{Seq: t.Seq, Role: t.Role, Text: t.Text})
	}
	return jsonResult(out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
