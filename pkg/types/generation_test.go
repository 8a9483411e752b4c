package types_test

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexedge/aigateway/pkg/types"
)

func TestContents_UnmarshalTurnArray(t *testing.T) {
	var c types.Contents
	err := json.Unmarshal([]byte(`[{"role":"user","parts":[{"text":"hi"}]},{"role":"model","parts":[{"text":"hello"}]}]`), &c)
	require.NoError(t, err)

	require.Len(t, c.Turns, 2)
	assert.Equal(t, "user", c.Turns[0].Role)
	assert.Equal(t, "hi", c.Turns[0].Text())
	assert.Equal(t, "model", c.Turns[1].Role)
}

func TestContents_UnmarshalBareTurn(t *testing.T) {
	var c types.Contents
	err := json.Unmarshal([]byte(`{"role":"user","parts":[{"text":"solo"}]}`), &c)
	require.NoError(t, err)

	require.Len(t, c.Turns, 1)
	assert.Equal(t, "solo", c.Turns[0].Text())
}

func TestContents_UnmarshalOpaqueValue(t *testing.T) {
	var c types.Contents
	err := json.Unmarshal([]byte(`{"question":"what is this?"}`), &c)
	require.NoError(t, err)

	require.Len(t, c.Turns, 1)
	assert.Equal(t, types.RoleUser, c.Turns[0].Role)
	assert.JSONEq(t, `{"question":"what is this?"}`, c.Turns[0].Text())
}

func TestContents_UnmarshalString(t *testing.T) {
	var c types.Contents
	err := json.Unmarshal([]byte(`"plain question"`), &c)
	require.NoError(t, err)

	require.Len(t, c.Turns, 1)
	assert.Equal(t, types.RoleUser, c.Turns[0].Role)
	assert.Equal(t, `"plain question"`, c.Turns[0].Text())
}

func TestContents_Validate(t *testing.T) {
	var empty types.Contents
	require.Error(t, empty.Validate())

	noParts := types.Contents{Turns: []types.Turn{{Role: "user"}}}
	require.Error(t, noParts.Validate())

	ok := types.UserText("hi")
	require.NoError(t, ok.Validate())
}

func TestContents_MarshalRoundTrip(t *testing.T) {
	c := types.UserText("hello")
	data, err := json.Marshal(c)
	require.NoError(t, err)

	var back types.Contents
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back.Turns, 1)
	assert.Equal(t, "hello", back.Turns[0].Text())
}

func TestUserTurnHelpers(t *testing.T) {
	turn := types.UserTurn("one")
	assert.Equal(t, types.RoleUser, turn.Role)
	assert.Equal(t, "one", turn.Text())

	c := types.Contents{Turns: []types.Turn{turn, types.UserTurn("two")}}
	require.NoError(t, c.Validate())

	assert.Equal(t, types.UserText("one").Turns[0], turn)
}

func TestGenerationRequest_Stream(t *testing.T) {
	req := &types.GenerationRequest{Model: "gemini-1.5-flash"}
	assert.False(t, req.Stream())

	req.Config = &types.GenerationConfig{Stream: true}
	assert.True(t, req.Stream())
}
