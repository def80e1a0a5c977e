package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestToGeminiContentsFoldsToolResults(t *testing.T) {
	contents, err := toGeminiContents([]Message{
		{Role: RoleUser, Content: "quote me", Images: []Image{{Data: []byte{1, 2}, MIMEType: "image/jpeg"}}},
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "a", Name: "search_vehicles", Arguments: `{"brand":"Honda"}`, Signature: []byte("sig")},
			{ID: "b", Name: "search_policies", Arguments: `{"query":"flood"}`},
		}},
		{Role: RoleTool, ToolCallID: "a", ToolName: "search_vehicles", Content: `{"success":true}`},
		{Role: RoleTool, ToolCallID: "b", ToolName: "search_policies", Content: "plain text"},
	})
	require.NoError(t, err)
	require.Len(t, contents, 3)

	assert.Equal(t, genai.RoleUser, contents[0].Role)
	require.Len(t, contents[0].Parts, 2)
	assert.Equal(t, "image/jpeg", contents[0].Parts[1].InlineData.MIMEType)

	assert.Equal(t, genai.RoleModel, contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.Equal(t, "Honda", contents[1].Parts[0].FunctionCall.Args["brand"])
	assert.Equal(t, []byte("sig"), contents[1].Parts[0].ThoughtSignature)

	require.Len(t, contents[2].Parts, 2)
	assert.Equal(t, true, contents[2].Parts[0].FunctionResponse.Response["success"])
	assert.Equal(t, "plain text", contents[2].Parts[1].FunctionResponse.Response["output"])
}

func TestToGeminiContentsRejectsUnknownRole(t *testing.T) {
	_, err := toGeminiContents([]Message{{Role: "system", Content: "x"}})
	assert.Error(t, err)
}

func TestCollectGeminiPartsSkipsThoughts(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
		{Text: "thinking...", Thought: true},
		{Text: "Hello"},
		{FunctionCall: &genai.FunctionCall{Name: "get_order_status", Args: map[string]any{"order_id": "o1"}}, ThoughtSignature: []byte("s")},
	}}}}}

	var streamed []string
	out := &Response{}
	require.NoError(t, collectGeminiParts(resp, out, func(s string) error {
		streamed = append(streamed, s)
		return nil
	}))

	assert.Equal(t, "Hello", out.Text)
	assert.Equal(t, []string{"Hello"}, streamed)
	require.Len(t, out.ToolCalls, 1)
	assert.NotEmpty(t, out.ToolCalls[0].ID)
	assert.JSONEq(t, `{"order_id":"o1"}`, out.ToolCalls[0].Arguments)
	assert.Equal(t, []byte("s"), out.ToolCalls[0].Signature)
}

func TestToGeminiSchemaUppercasesTypes(t *testing.T) {
	s := toGeminiSchema(&Schema{Type: TypeObject, Properties: map[string]*Schema{"year": {Type: TypeInteger}}, Required: []string{"year"}})
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, genai.TypeInteger, s.Properties["year"].Type)
	assert.Equal(t, []string{"year"}, s.Required)
}
