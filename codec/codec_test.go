package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Backbone  string `json:"backbone"`
		Dimension int    `json:"dimension"`
	}

	in := payload{Backbone: "effnet", Dimension: 1280}
	data, err := JSON{}.Marshal(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, JSON{}.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestGoJSONRoundTrip(t *testing.T) {
	type payload struct {
		Backbone  string `json:"backbone"`
		Dimension int    `json:"dimension"`
	}

	in := payload{Backbone: "effnet", Dimension: 1280}
	data, err := GoJSON{}.Marshal(in)
	require.NoError(t, err)

	// Wire-compatible with the stdlib codec in both directions.
	var out payload
	require.NoError(t, JSON{}.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	data, err = JSON{}.Marshal(in)
	require.NoError(t, err)
	out = payload{}
	require.NoError(t, GoJSON{}.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestDefaultIsGoJSON(t *testing.T) {
	assert.Equal(t, "go-json", Default.Name())
}

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	c, ok = ByName("go-json")
	require.True(t, ok)
	assert.Equal(t, "go-json", c.Name())

	_, ok = ByName("msgpack")
	assert.False(t, ok)
}
