package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_EmptyIncomingReturnsCurrent(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	current := Snapshot{"todos": []any{"t1"}, "other": 1.0}
	for _, preserve := range []bool{true, false} {
		assert.Equal(t, current, p.Merge(current, Snapshot{}, preserve))
		assert.Equal(t, current, p.Merge(current, nil, preserve))
	}
}

func TestMerge_NilCurrentTakesIncomingVerbatim(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	incoming := Snapshot{"todos": []any{}, "minimax": nil, "other": 2.0}
	for _, preserve := range []bool{true, false} {
		assert.Equal(t, incoming, p.Merge(nil, incoming, preserve))
	}
}

func TestMerge_HeavyFields(t *testing.T) {
	t.Parallel()

	current := Snapshot{"todos": []any{"t1", "t2"}, "other": 1.0}
	incoming := Snapshot{"todos": []any{}, "other": 2.0}

	tests := []struct {
		name     string
		preserve bool
		want     Snapshot
	}{
		{"partial keeps loaded list", true, Snapshot{"todos": []any{"t1", "t2"}, "other": 2.0}},
		{"full update clears list", false, Snapshot{"todos": []any{}, "other": 2.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultPolicy().Merge(current, incoming, tt.preserve)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMerge_NonEmptyHeavyUpdateWins(t *testing.T) {
	t.Parallel()

	current := Snapshot{"logs": []any{"a"}}
	incoming := Snapshot{"logs": []any{"b", "c"}}
	got := DefaultPolicy().Merge(current, incoming, true)
	assert.Equal(t, []any{"b", "c"}, got["logs"])
}

func TestMerge_NullableNested(t *testing.T) {
	t.Parallel()

	sub := map[string]any{"x": 1.0}
	current := Snapshot{"minimax": sub, "other": 1.0}

	got := DefaultPolicy().Merge(current, Snapshot{"minimax": nil, "other": 3.0}, true)
	assert.Equal(t, sub, got["minimax"])
	assert.Equal(t, 3.0, got["other"])

	got = DefaultPolicy().Merge(current, Snapshot{"other": 3.0}, true)
	assert.Equal(t, sub, got["minimax"])

	got = DefaultPolicy().Merge(current, Snapshot{"minimax": nil}, false)
	assert.Nil(t, got["minimax"])
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	t.Parallel()

	current := Snapshot{"todos": []any{"t1"}, "a": 1.0}
	incoming := Snapshot{"todos": []any{}, "b": 2.0}
	_ = DefaultPolicy().Merge(current, incoming, true)

	assert.Equal(t, Snapshot{"todos": []any{"t1"}, "a": 1.0}, current)
	assert.Equal(t, Snapshot{"todos": []any{}, "b": 2.0}, incoming)
}

func TestMerge_TypedSlicesCountAsSequences(t *testing.T) {
	t.Parallel()

	current := Snapshot{"usage_panels": []map[string]any{{"id": "p1"}}}
	incoming := Snapshot{"usage_panels": []map[string]any{}}
	got := DefaultPolicy().Merge(current, incoming, true)
	require.Len(t, got["usage_panels"], 1)
}

func TestMerge_CustomRuleTable(t *testing.T) {
	t.Parallel()

	p := NewPolicy(map[string]Rule{"queue": PreserveIfEmpty})
	assert.Equal(t, PreserveIfEmpty, p.Rule("queue"))
	assert.Equal(t, Overwrite, p.Rule("todos"))

	current := Snapshot{"queue": []any{1.0}, "todos": []any{"t"}}
	got := p.Merge(current, Snapshot{"queue": []any{}, "todos": []any{}}, true)
	assert.Equal(t, []any{1.0}, got["queue"])
	assert.Equal(t, []any{}, got["todos"])
}

func TestMerge_ZeroPolicyOverwrites(t *testing.T) {
	t.Parallel()

	var p Policy
	got := p.Merge(Snapshot{"todos": []any{"t"}}, Snapshot{"todos": []any{}}, true)
	assert.Equal(t, []any{}, got["todos"])
}

func TestOrigin_Partial(t *testing.T) {
	t.Parallel()

	assert.True(t, OriginPollLight.Partial())
	assert.True(t, OriginPush.Partial())
	assert.False(t, OriginPollFull.Partial())
	assert.False(t, OriginAction.Partial())
	assert.Equal(t, "push", OriginPush.String())
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := Snapshot{
		"todos":   []any{map[string]any{"id": "1"}},
		"minimax": map[string]any{"used": 3.0},
	}
	dup := orig.Clone()
	dup.List("todos")[0]["id"] = "changed"
	dup.Object("minimax")["used"] = 9.0

	assert.Equal(t, "1", orig.List("todos")[0]["id"])
	assert.Equal(t, 3.0, orig.Object("minimax")["used"])
	assert.Equal(t, 1, dup.Len("todos"))
}

func TestDecode(t *testing.T) {
	t.Parallel()

	snap, err := Decode([]byte(`{"todos":[{"id":"a"}],"minimax":null}`))
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len("todos"))

	_, err = Decode([]byte(`[1,2]`))
	assert.Error(t, err)
}
