package interpolation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWrite struct {
	Key   string `env_interpolation:"yes"`
	Value string `env_interpolation:"yes"`
}

type testParticipant struct {
	Name   string `env_interpolation:"yes"`
	Vote   string
	Writes []testWrite       `env_interpolation:"yes"`
	Labels map[string]string `env_interpolation:"yes"`
}

type testScenario struct {
	Client       string            `env_interpolation:"yes"`
	Participants []testParticipant `env_interpolation:"yes"`
	Nested       *testParticipant  `env_interpolation:"yes"`
}

func TestInterpolateStruct(t *testing.T) {
	t.Run("nil input", func(t *testing.T) {
		assert.NoError(t, InterpolateStruct(nil))
	})

	t.Run("rejects non-structs", func(t *testing.T) {
		value := "not a struct"
		assert.Error(t, InterpolateStruct(&value))
	})

	t.Run("tagged string fields", func(t *testing.T) {
		t.Setenv("TWOPHASE_CLIENT", "cli")
		s := testScenario{Client: "${TWOPHASE_CLIENT}"}
		require.NoError(t, InterpolateStruct(&s))
		assert.Equal(t, "cli", s.Client)
	})

	t.Run("untagged fields stay untouched", func(t *testing.T) {
		p := testParticipant{Vote: "${TWOPHASE_VOTE}"}
		require.NoError(t, InterpolateStruct(&p))
		assert.Equal(t, "${TWOPHASE_VOTE}", p.Vote)
	})

	t.Run("struct slices recurse", func(t *testing.T) {
		t.Setenv("TWOPHASE_KEY", "stock/widget")
		s := testScenario{
			Participants: []testParticipant{
				{Writes: []testWrite{{Key: "${TWOPHASE_KEY}", Value: "41"}}},
			},
		}
		require.NoError(t, InterpolateStruct(&s))
		assert.Equal(t, "stock/widget", s.Participants[0].Writes[0].Key)
	})

	t.Run("string maps", func(t *testing.T) {
		t.Setenv("TWOPHASE_REGION", "us-east")
		p := testParticipant{Labels: map[string]string{"region": "${TWOPHASE_REGION}"}}
		require.NoError(t, InterpolateStruct(&p))
		assert.Equal(t, "us-east", p.Labels["region"])
	})

	t.Run("nested struct pointers", func(t *testing.T) {
		t.Setenv("TWOPHASE_NAME", "billing")
		s := testScenario{Nested: &testParticipant{Name: "${TWOPHASE_NAME}"}}
		require.NoError(t, InterpolateStruct(&s))
		assert.Equal(t, "billing", s.Nested.Name)
	})

	t.Run("nil nested pointer", func(t *testing.T) {
		s := testScenario{}
		assert.NoError(t, InterpolateStruct(&s))
	})

	t.Run("missing variable surfaces the field", func(t *testing.T) {
		s := testScenario{Client: "${TWOPHASE_DEFINITELY_UNSET}"}
		err := InterpolateStruct(&s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Client")
	})
}
