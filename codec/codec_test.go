package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bucketEntry struct {
	Prefix uint64 `json:"prefix"`
	Blocks int    `json:"blocks"`
	Count  int    `json:"count"`
}

type manifest struct {
	WordLength int           `json:"word_length"`
	Buckets    []bucketEntry `json:"buckets"`
}

func TestCodecs_Interchangeable(t *testing.T) {
	m := manifest{WordLength: 4, Buckets: []bucketEntry{{Prefix: 3, Blocks: 2, Count: 17}}}

	for _, c := range []Codec{JSON{}, GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Marshal(m)
			require.NoError(t, err)
			assert.JSONEq(t, `{"word_length":4,"buckets":[{"prefix":3,"blocks":2,"count":17}]}`, string(data))

			for _, other := range []Codec{JSON{}, GoJSON{}} {
				var got manifest
				require.NoError(t, other.Unmarshal(data, &got))
				assert.Equal(t, m, got)
			}
		})
	}
}

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	c, err := Lookup("go-json")
	require.NoError(t, err)
	assert.Equal(t, Default.Name(), c.Name())

	_, ok = ByName("msgpack")
	assert.False(t, ok)
	_, err = Lookup("msgpack")
	assert.Error(t, err)
}

func TestMarshalIndent(t *testing.T) {
	for _, c := range []Codec{JSON{}, GoJSON{}} {
		data, err := c.MarshalIndent(manifest{WordLength: 2})
		require.NoError(t, err, c.Name())
		assert.Contains(t, string(data), "\n  \"word_length\": 2", c.Name())
	}
}
