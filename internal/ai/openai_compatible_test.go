package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *OpenAIModel {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewOpenAICompatibleClient(ChatConfig{BaseURL: srv.URL + "/v1/", APIKey: "k"})
	m, err := client.Factory()(context.Background(), "gpt-test")
	require.NoError(t, err)
	return m.(*OpenAIModel)
}

func TestOpenAIGenerateSendsToolsAndParsesCalls(t *testing.T) {
	var body map[string]any
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"","tool_calls":[{"id":"c1","type":"function","function":{"name":"search_vehicles","arguments":"{\"brand\":\"Honda\"}"}}]}}]}`)
	})

	resp, err := m.Generate(context.Background(), &Request{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		Tools: []ToolSpec{{
			Name:       "search_vehicles",
			Parameters: &Schema{Type: TypeObject, Properties: map[string]*Schema{"brand": {Type: TypeString}}},
		}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "c1", resp.ToolCalls[0].ID)
	assert.Equal(t, "search_vehicles", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"brand":"Honda"}`, resp.ToolCalls[0].Arguments)

	assert.Equal(t, "gpt-test", body["model"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	tools := body["tools"].([]any)
	require.Len(t, tools, 1)
}

func TestOpenAIGenerateReportsStatus(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "slow down")
	})

	_, err := m.Generate(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAIStreamAssemblesTextAndToolCalls(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"c9\",\"function\":{\"name\":\"get_order_status\",\"arguments\":\"{\\\"order_\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"id\\\":\\\"x\\\"}\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var chunks []string
	resp, err := m.GenerateStream(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}}, func(s string) error {
		chunks = append(chunks, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, chunks)
	assert.Equal(t, "Hello", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "c9", resp.ToolCalls[0].ID)
	assert.Equal(t, "get_order_status", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"order_id":"x"}`, resp.ToolCalls[0].Arguments)
}

func TestToChatMessagesEncodesImagesAndToolResults(t *testing.T) {
	msgs := toChatMessages(&Request{Messages: []Message{
		{Role: RoleUser, Content: "look", Images: []Image{{Data: []byte("abc"), MIMEType: "image/png"}}},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "t", Arguments: "{}"}}},
		{Role: RoleTool, ToolCallID: "c1", ToolName: "t", Content: `{"success":true}`},
	}})
	require.Len(t, msgs, 3)

	parts, ok := msgs[0].Content.([]chatContentPart)
	require.True(t, ok)
	require.Len(t, parts, 2)
	assert.Equal(t, "data:image/png;base64,YWJj", parts[1].ImageURL.URL)
	assert.Equal(t, "function", msgs[1].ToolCalls[0].Type)
	assert.Equal(t, "c1", msgs[2].ToolCallID)
}
