package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/rcie/pkg/rustmodel"
)

func TestChunk_SplitsIntoFixedSizeGroupsWithRemainder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	got := chunk(items, 2)

	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, got)
}

func TestChunk_NonPositiveSizeDefaultsTo50(t *testing.T) {
	items := make([]int, 120)
	for i := range items {
		items[i] = i
	}

	got := chunk(items, 0)

	assert.Len(t, got, 3)
	assert.Len(t, got[0], 50)
	assert.Len(t, got[2], 20)
}

func TestChunk_EmptyInputReturnsNoGroups(t *testing.T) {
	assert.Empty(t, chunk([]int{}, 10))
}

func TestSplitCalls_PartitionsBySyntheticThenQualifiedThenUnqualified(t *testing.T) {
	calls := []rustmodel.FunctionCall{
		{CalleeName: "a", IsSynthetic: true},
		{CalleeName: "b", QualifiedCallee: "crate::b"},
		{CalleeName: "c"},
		{CalleeName: "d", IsSynthetic: true, QualifiedCallee: "crate::d"},
	}

	synthetic, qualified, unqualified := splitCalls(calls)

	assert.Len(t, synthetic, 2, "a synthetic call with a qualified callee is still routed through the synthetic path")
	assert.Len(t, qualified, 1)
	assert.Len(t, unqualified, 1)
	assert.Equal(t, "b", qualified[0].CalleeName)
	assert.Equal(t, "c", unqualified[0].CalleeName)
}

func TestLastSegmentsSuffix_ReturnsLastNSegmentsPrefixedWithColons(t *testing.T) {
	assert.Equal(t, "::bar::baz", lastSegmentsSuffix("foo::bar::baz", 2))
	assert.Equal(t, "::foo::bar::baz", lastSegmentsSuffix("foo::bar::baz", 3))
}

func TestLastSegmentsSuffix_FewerSegmentsThanRequestedReturnsAll(t *testing.T) {
	assert.Equal(t, "::bar", lastSegmentsSuffix("bar", 3))
}

func TestToInt64_HandlesIntAndInt64AndDefaultsOtherwise(t *testing.T) {
	assert.Equal(t, int64(42), toInt64(int64(42)))
	assert.Equal(t, int64(7), toInt64(7))
	assert.Equal(t, int64(0), toInt64("not a number"))
	assert.Equal(t, int64(0), toInt64(nil))
}

func TestBackoffSchedule_GrowsExponentiallyAndCapsAtMax(t *testing.T) {
	sched := backoffSchedule(100*time.Millisecond, 2.0, 1*time.Second, 5)

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1000 * time.Millisecond,
	}, sched)
}

func TestBackoffSchedule_ZeroMaxMeansUncapped(t *testing.T) {
	sched := backoffSchedule(1*time.Second, 3.0, 0, 3)

	assert.Equal(t, []time.Duration{1 * time.Second, 3 * time.Second, 9 * time.Second}, sched)
}
