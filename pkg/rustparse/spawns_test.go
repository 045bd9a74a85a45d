package rustparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLikelyActorType_AcceptsActorNamedOrContextedIdentifiers(t *testing.T) {
	assert.True(t, isLikelyActorType("OrderActor"))
	assert.True(t, isLikelyActorType("PriceSupervisor"))
	assert.True(t, isLikelyActorType("BillingManagerThing"))
	assert.False(t, isLikelyActorType("orderActor"), "must be proper-cased")
	assert.False(t, isLikelyActorType("Actor"), "bare trait name is rejected")
	assert.False(t, isLikelyActorType("Message"))
	assert.False(t, isLikelyActorType("Handler"))
	assert.False(t, isLikelyActorType("tokio"), "non-actor framework identifier")
	assert.False(t, isLikelyActorType("Order"), "no actor naming or context")
}

func TestInferActorTypeFromVariableName_ConvertsSnakeCaseToPascalCaseWithSuffix(t *testing.T) {
	got, ok := inferActorTypeFromVariableName("accounting_actor")
	assert.True(t, ok)
	assert.Equal(t, "AccountingActor", got)

	got, ok = inferActorTypeFromVariableName("price_feed_supervisor")
	assert.True(t, ok)
	assert.Equal(t, "PriceFeedSupervisor", got)

	_, ok = inferActorTypeFromVariableName("order")
	assert.False(t, ok)
}

func TestSnakeToPascalCase(t *testing.T) {
	assert.Equal(t, "PriceFeed", snakeToPascalCase("price_feed"))
	assert.Equal(t, "A", snakeToPascalCase("a"))
	assert.Equal(t, "", snakeToPascalCase(""))
}

func TestIsActorFrameworkModuleSpawn_RecognizesKnownFrameworkTriples(t *testing.T) {
	assert.True(t, isActorFrameworkModuleSpawn("kameo", "actor", "spawn"))
	assert.True(t, isActorFrameworkModuleSpawn("kameo", "actor", "spawn_with_mailbox"))
	assert.True(t, isActorFrameworkModuleSpawn("bastion", "anything", "spawn"))
	assert.False(t, isActorFrameworkModuleSpawn("tokio", "task", "spawn"))
	assert.False(t, isActorFrameworkModuleSpawn("kameo", "other", "spawn"))
}

func TestSplitLastSegment(t *testing.T) {
	head, tail, ok := splitLastSegment("SomeActor::new")
	assert.True(t, ok)
	assert.Equal(t, "SomeActor", head)
	assert.Equal(t, "new", tail)

	_, _, ok = splitLastSegment("new")
	assert.False(t, ok)
}
