package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawNumber_Float64(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{"integer", `{"level": 72}`, 72, true},
		{"float", `{"level": 81.5}`, 81.5, true},
		{"null", `{"level": null}`, 0, false},
		{"missing", `{}`, 0, false},
		{"string", `{"level": "72"}`, 0, false},
		{"bool", `{"level": true}`, 0, false},
		{"object", `{"level": {"v": 1}}`, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var s HydrationSummary
			require.NoError(t, json.Unmarshal([]byte(tc.input), &s))
			got, ok := s.Level.Float64()
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRawNumber_MarshalEmptyAsNull(t *testing.T) {
	b, err := json.Marshal(HydrationSummary{Status: "ok"})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"level":null`)

	b, err = json.Marshal(HydrationSummary{Level: NewRawNumber(64)})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"level":64`)
}

func TestAuthSession_UserID(t *testing.T) {
	id := int64(42)
	assert.Equal(t, "42", AuthSession{ID: &id, Email: "a@b.c"}.UserID())
	assert.Equal(t, "a@b.c", AuthSession{Email: "a@b.c"}.UserID())
}
