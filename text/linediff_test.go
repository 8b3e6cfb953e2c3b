package text

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbered(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("l%d", i+1)
	}
	return lines
}

func TestLineDiff_Identical(t *testing.T) {
	assert.Nil(t, LineDiff("a\nb", "a\nb"))
}

func TestLineDiff_SingleModification(t *testing.T) {
	hunks := LineDiff("a\nb\nc", "a\nB\nc")
	require.Len(t, hunks, 1)
	assert.Equal(t, 1, hunks[0].OldStart)
	assert.Equal(t, 1, hunks[0].NewStart)
	assert.Equal(t, []string{" a", "-b", "+B", " c"}, hunks[0].Lines)
}

func TestLineDiff_PureInsertion(t *testing.T) {
	hunks := LineDiff("a\nc", "a\nb\nc")
	require.Len(t, hunks, 1)
	assert.Equal(t, []string{" a", "+b", " c"}, hunks[0].Lines)
}

func TestLineDiff_PureDeletion(t *testing.T) {
	hunks := LineDiff("a\nb\nc", "a\nc")
	require.Len(t, hunks, 1)
	assert.Equal(t, []string{" a", "-b", " c"}, hunks[0].Lines)
}

func TestLineDiff_DistantChangesSplitIntoHunks(t *testing.T) {
	oldLines := numbered(20)
	newLines := numbered(20)
	newLines[1] = "changed2"
	newLines[17] = "changed18"

	hunks := LineDiffContext(strings.Join(oldLines, "\n"), strings.Join(newLines, "\n"), 1)
	require.Len(t, hunks, 2)

	assert.Equal(t, 1, hunks[0].OldStart)
	assert.Equal(t, []string{" l1", "-l2", "+changed2", " l3"}, hunks[0].Lines)

	assert.Equal(t, 17, hunks[1].OldStart)
	assert.Equal(t, 17, hunks[1].NewStart)
	assert.Equal(t, []string{" l17", "-l18", "+changed18", " l19"}, hunks[1].Lines)
}

func TestLineDiff_NearbyChangesMerge(t *testing.T) {
	oldLines := numbered(10)
	newLines := numbered(10)
	newLines[2] = "x"
	newLines[5] = "y"

	hunks := LineDiffContext(strings.Join(oldLines, "\n"), strings.Join(newLines, "\n"), 2)
	require.Len(t, hunks, 1, "gap of two equal lines is within 2*context")
	assert.Equal(t, 1, hunks[0].OldStart)
}

func TestSplitJoinLines_RoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", "a\n", "a\nb", "\n\n"} {
		assert.Equal(t, s, JoinLines(SplitLines(s)), "round trip %q", s)
	}
	assert.Equal(t, []string{"a", ""}, SplitLines("a\n"))
}
