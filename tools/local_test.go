package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weatherArgs struct {
	City  string `json:"city" jsonschema:"description=City name"`
	Units string `json:"units,omitempty" jsonschema:"enum=metric,enum=imperial"`
	Days  int    `json:"days,omitempty"`
}

func TestNewLocalSchema(t *testing.T) {
	def := NewLocal("weather", "Get the weather", func(ctx context.Context, args weatherArgs) (any, error) {
		return args.City, nil
	})

	assert.Equal(t, OriginLocal, def.Origin)
	assert.False(t, def.Interactive)
	assert.Equal(t, "object", def.Parameters.Type)
	assert.Equal(t, []string{"city"}, def.Parameters.Required)
	require.Contains(t, def.Parameters.Properties, "city")
	require.Contains(t, def.Parameters.Properties, "units")

	city, ok := def.Parameters.Properties["city"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", city["type"])
	assert.Equal(t, "City name", city["description"])

	out, err := def.Run(context.Background(), map[string]any{"city": "Oslo"})
	require.NoError(t, err)
	assert.Equal(t, "Oslo", out)
}

func TestNewLocalRejectsBadArguments(t *testing.T) {
	def := NewLocal("weather", "", func(ctx context.Context, args weatherArgs) (any, error) {
		return nil, nil
	})
	_, err := def.Run(context.Background(), map[string]any{"days": "many"})
	assert.Error(t, err)
}

func TestBuiltins(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	builtins := Builtins(func() time.Time { return fixed })
	require.Len(t, builtins, 2)

	reg := NewRegistry(builtins)

	ct, ok := reg.Lookup(CurrentTimeName)
	require.True(t, ok)
	out, err := ct.Run(context.Background(), map[string]any{"timezone": "Asia/Tokyo"})
	require.NoError(t, err)
	assert.Equal(t, CurrentTime{Time: "2025-03-15T00:09:26+09:00", Timezone: "Asia/Tokyo", Weekday: "Saturday"}, out)

	out, err = ct.Run(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "UTC", out.(CurrentTime).Timezone)

	_, err = ct.Run(context.Background(), map[string]any{"timezone": "Mars/Olympus"})
	assert.Error(t, err)

	ask, ok := reg.Lookup(AskUserName)
	require.True(t, ok)
	assert.True(t, ask.Interactive)
	assert.Equal(t, []string{"question"}, ask.Parameters.Required)
}
