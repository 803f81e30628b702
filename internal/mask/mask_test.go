package mask

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pmgate/internal/eventlog"
)

func TestDetect(t *testing.T) {
	cols := []string{
		eventlog.ColCase, eventlog.ColActivity, eventlog.ColTimestamp, eventlog.ColResource,
		"Customer_Email", "amount", "UserID",
	}
	got := Detect(cols, DefaultPatterns)
	assert.Equal(t, []string{eventlog.ColResource, "Customer_Email", "UserID"}, got)

	assert.Empty(t, Detect(cols, []string{" ", ""}))
	assert.Equal(t, []string{"amount"}, Detect(cols, []string{"AMOUNT"}))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Hash, s)

	_, err = ParseStrategy("rot13")
	assert.True(t, eventlog.IsConfigurationError(err))
}

func table(values ...string) *eventlog.Table {
	t := eventlog.NewTable("email")
	for _, v := range values {
		t.AppendStrings(v)
	}
	return t
}

func column(t *eventlog.Table) []string {
	var out []string
	for _, v := range t.Column("email") {
		out = append(out, v.String())
	}
	return out
}

func TestApply_Redact(t *testing.T) {
	tbl := table("a@x", "")
	require.NoError(t, Apply(tbl, []string{"email"}, Redact, ""))
	assert.Equal(t, []string{"***", "***"}, column(tbl))
}

func TestApply_TokenizeIsBijectiveAndIdempotent(t *testing.T) {
	input := []string{"b@x", "a@x", "b@x", "c@x", "a@x"}

	first := table(input...)
	require.NoError(t, Apply(first, []string{"email"}, Tokenize, ""))
	second := table(input...)
	require.NoError(t, Apply(second, []string{"email"}, Tokenize, ""))

	got := column(first)
	assert.Equal(t, []string{"email_0", "email_1", "email_0", "email_2", "email_1"}, got)
	assert.Equal(t, got, column(second), "identical input yields identical tokens")

	forward := make(map[string]string)
	backward := make(map[string]string)
	for i, in := range input {
		tok := got[i]
		if prev, ok := forward[in]; ok {
			assert.Equal(t, prev, tok)
		}
		if prev, ok := backward[tok]; ok {
			assert.Equal(t, prev, in, "token %s maps to one value", tok)
		}
		forward[in], backward[tok] = tok, in
	}
	assert.Len(t, forward, 3)
	assert.Len(t, backward, 3)
}

func TestApply_HashIsSalted(t *testing.T) {
	tbl := table("a@x", "")
	require.NoError(t, Apply(tbl, []string{"email", "absent"}, Hash, "pepper"))

	want := sha256.Sum256([]byte("peppera@x"))
	empty := sha256.Sum256([]byte("pepper"))
	assert.Equal(t, []string{hex.EncodeToString(want[:]), hex.EncodeToString(empty[:])}, column(tbl))
}

func TestApply_UnsupportedStrategy(t *testing.T) {
	err := Apply(table("a"), []string{"email"}, Strategy("nope"), "")
	assert.True(t, eventlog.IsConfigurationError(err))
}
