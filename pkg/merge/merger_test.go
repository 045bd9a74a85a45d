package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/rcie/pkg/rustmodel"
)

func TestMerge_DedupsFunctionsAcrossBatches(t *testing.T) {
	fn := rustmodel.Function{
		Name: "handle", QualifiedName: "crate::mod::handle", CrateName: "crate", LineStart: 10,
	}
	fn.GenerateID()

	batchA := rustmodel.NewSymbolBatch("src/mod.rs")
	batchA.Functions = append(batchA.Functions, fn)
	batchB := rustmodel.NewSymbolBatch("src/mod.rs")
	batchB.Functions = append(batchB.Functions, fn)

	set := Merge([]*rustmodel.SymbolBatch{batchA, batchB})

	assert.Len(t, set.Functions, 1, "the same function seen from two batches should collapse to one node")
}

func TestMerge_IsOrderIndependent(t *testing.T) {
	fnA := rustmodel.Function{Name: "a", QualifiedName: "crate::a", CrateName: "crate", LineStart: 1}
	fnA.GenerateID()
	fnB := rustmodel.Function{Name: "b", QualifiedName: "crate::b", CrateName: "crate", LineStart: 5}
	fnB.GenerateID()

	batchA := rustmodel.NewSymbolBatch("src/a.rs")
	batchA.Functions = append(batchA.Functions, fnA)
	batchB := rustmodel.NewSymbolBatch("src/b.rs")
	batchB.Functions = append(batchB.Functions, fnB)

	forward := Merge([]*rustmodel.SymbolBatch{batchA, batchB})
	backward := Merge([]*rustmodel.SymbolBatch{batchB, batchA})

	assert.Equal(t, forward.Functions, backward.Functions)
}

func TestMerge_UnionsActorLocalMessagesAndPromotesDistributed(t *testing.T) {
	base := rustmodel.Actor{Name: "Worker", CrateName: "crate", LocalMessages: []string{"Ping"}}
	distributedSighting := rustmodel.Actor{
		Name: "Worker", CrateName: "crate", LocalMessages: []string{"Pong"}, IsDistributed: true,
	}

	batch := rustmodel.NewSymbolBatch("src/worker.rs")
	batch.Actors = append(batch.Actors, base, distributedSighting)

	set := Merge([]*rustmodel.SymbolBatch{batch})

	assert.Len(t, set.Actors, 1)
	assert.ElementsMatch(t, []string{"Ping", "Pong"}, set.Actors[0].LocalMessages)
	assert.True(t, set.Actors[0].IsDistributed)
	assert.Equal(t, rustmodel.ActorDistributed, set.Actors[0].ActorType)
}

func TestMerge_MacroExpansionDoubleDetectionCollapses(t *testing.T) {
	// Simulates the walker's AST-based detector and the macro engine's
	// regex pass both firing on the same paste! invocation.
	fromWalker := rustmodel.MacroExpansion{FilePath: "src/m.rs", LineStart: 42, MacroName: "paste"}
	fromMacroEngine := rustmodel.MacroExpansion{FilePath: "src/m.rs", LineStart: 42, MacroName: "paste"}

	batch := rustmodel.NewSymbolBatch("src/m.rs")
	batch.MacroExpansions = append(batch.MacroExpansions, fromWalker, fromMacroEngine)

	set := Merge([]*rustmodel.SymbolBatch{batch})

	assert.Len(t, set.MacroExpansions, 1)
}

func TestMerge_ImplMethodsMergeAcrossDuplicateFragments(t *testing.T) {
	first := rustmodel.Impl{TypeName: "Worker", TraitName: "Actor", LineStart: 1, Methods: []string{"started"}}
	second := rustmodel.Impl{TypeName: "Worker", TraitName: "Actor", LineStart: 1, Methods: []string{"stopped"}}

	batch := rustmodel.NewSymbolBatch("src/worker.rs")
	batch.Impls = append(batch.Impls, first, second)

	set := Merge([]*rustmodel.SymbolBatch{batch})

	assert.Len(t, set.Impls, 1)
	assert.ElementsMatch(t, []string{"started", "stopped"}, set.Impls[0].Methods)
}

func TestMerge_UnkeyedCollectionsAppendUnconditionally(t *testing.T) {
	call := rustmodel.FunctionCall{CallerID: "x", CalleeName: "y", Line: 1}
	batch := rustmodel.NewSymbolBatch("src/a.rs")
	batch.Calls = append(batch.Calls, call, call)

	set := Merge([]*rustmodel.SymbolBatch{batch})

	assert.Len(t, set.Calls, 2, "calls are not deduplicated at merge time")
}
