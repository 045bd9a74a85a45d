package resolver

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/rcie/pkg/rustmodel"
)

func fn(qualifiedName, crate string) rustmodel.Function {
	f := rustmodel.Function{QualifiedName: qualifiedName, CrateName: crate, Name: rightmostSegment(qualifiedName)}
	f.GenerateID()
	return f
}

func TestResolveCalls_QualifiedNameExactMatch(t *testing.T) {
	set := rustmodel.NewSymbolSet()
	set.Functions = append(set.Functions, fn("billing::process_payment", "billing"))

	r := New()
	r.BuildIndex(set)

	calls := []rustmodel.FunctionCall{
		{CalleeName: "billing::process_payment", FromCrate: "orders"},
	}
	resolved := r.ResolveCalls(calls)

	assert.Equal(t, "billing::process_payment", resolved[0].QualifiedCallee)
	assert.Equal(t, "billing", resolved[0].ToCrate)
	assert.True(t, resolved[0].CrossCrate)
}

func TestResolveCalls_CrateAliasRewrite(t *testing.T) {
	set := rustmodel.NewSymbolSet()
	set.Functions = append(set.Functions, fn("crate::util::helper", "billing"))

	r := New()
	r.BuildIndex(set)

	calls := []rustmodel.FunctionCall{
		{CalleeName: "billing::util::helper", FromCrate: "billing"},
	}
	resolved := r.ResolveCalls(calls)

	assert.Equal(t, "crate::util::helper", resolved[0].QualifiedCallee)
	assert.False(t, resolved[0].CrossCrate)
}

func TestResolveCalls_ImportTableLookup(t *testing.T) {
	set := rustmodel.NewSymbolSet()
	set.Functions = append(set.Functions, fn("billing::process_payment", "billing"))
	set.Imports = append(set.Imports, rustmodel.Import{
		ModulePath:    "billing",
		ImportedItems: []rustmodel.ImportedItem{{Name: "process_payment"}},
		ImportType:    rustmodel.ImportSimple,
		FilePath:      "src/orders.rs",
	})

	r := New()
	r.BuildIndex(set)

	calls := []rustmodel.FunctionCall{
		{CalleeName: "process_payment", FilePath: "src/orders.rs", FromCrate: "orders"},
	}
	resolved := r.ResolveCalls(calls)

	assert.Equal(t, "billing::process_payment", resolved[0].QualifiedCallee)
}

func TestResolveCalls_UniqueBareNameMatch(t *testing.T) {
	set := rustmodel.NewSymbolSet()
	set.Functions = append(set.Functions, fn("orders::validate", "orders"))

	r := New()
	r.BuildIndex(set)

	calls := []rustmodel.FunctionCall{{CalleeName: "validate", FromCrate: "orders"}}
	resolved := r.ResolveCalls(calls)

	assert.Equal(t, "orders::validate", resolved[0].QualifiedCallee)
}

func TestResolveCalls_AmbiguousBareNameLeftUnresolved(t *testing.T) {
	set := rustmodel.NewSymbolSet()
	set.Functions = append(set.Functions, fn("orders::validate", "orders"))
	set.Functions = append(set.Functions, fn("billing::validate", "billing"))

	r := New()
	r.BuildIndex(set)

	calls := []rustmodel.FunctionCall{{CalleeName: "validate", FromCrate: "shipping"}}
	resolved := r.ResolveCalls(calls)

	assert.Empty(t, resolved[0].QualifiedCallee)
}

func TestResolveCalls_SyntheticCallsSkipResolution(t *testing.T) {
	r := New()
	r.BuildIndex(rustmodel.NewSymbolSet())

	calls := []rustmodel.FunctionCall{
		{CalleeName: "anything", IsSynthetic: true, QualifiedCallee: "already:set"},
	}
	resolved := r.ResolveCalls(calls)

	assert.Equal(t, "already:set", resolved[0].QualifiedCallee, "resolver must not overwrite a synthetic call's target")
}

func TestResolveCalls_AboveParallelThresholdStillResolvesEveryCall(t *testing.T) {
	set := rustmodel.NewSymbolSet()
	set.Functions = append(set.Functions, fn("crate::shared::target", "crate"))

	r := New()
	r.BuildIndex(set)

	calls := make([]rustmodel.FunctionCall, parallelThreshold+10)
	for i := range calls {
		calls[i] = rustmodel.FunctionCall{CalleeName: "crate::shared::target", FromCrate: "crate"}
	}
	resolved := r.ResolveCalls(calls)

	for i, c := range resolved {
		assert.Equalf(t, "crate::shared::target", c.QualifiedCallee, "call %d should resolve", i)
	}
}

func TestSyntheticTraitMethodCalls_EmitsOnlyDeclaredMethods(t *testing.T) {
	set := rustmodel.NewSymbolSet()
	set.Impls = append(set.Impls, rustmodel.Impl{
		TypeName: "Worker", TraitName: "Actor", Methods: []string{"started"}, LineStart: 10, FilePath: "src/worker.rs",
	})

	calls := SyntheticTraitMethodCalls(set)

	assert.Len(t, calls, 1)
	assert.Equal(t, "Worker::started", calls[0].QualifiedCallee)
	assert.True(t, calls[0].IsSynthetic)
	assert.InDelta(t, 0.8, float64(calls[0].SyntheticConfidence), 0.0001)
	assert.Equal(t, fmt.Sprintf("framework:%s", "Actor"), calls[0].CallerID)
}

func TestSyntheticTraitMethodCalls_SkipsUnknownTraits(t *testing.T) {
	set := rustmodel.NewSymbolSet()
	set.Impls = append(set.Impls, rustmodel.Impl{TypeName: "Thing", TraitName: "CustomTrait", Methods: []string{"foo"}})

	assert.Empty(t, SyntheticTraitMethodCalls(set))
}
