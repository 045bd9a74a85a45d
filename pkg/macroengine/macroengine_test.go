package macroengine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/rcie/pkg/rustmodel"
)

func TestModuleName_UsesOverridesForSpecialCases(t *testing.T) {
	assert.Equal(t, "oi_indicator_suite", ModuleName("OIIndicatorSuite"))
	assert.Equal(t, "divergences", ModuleName("Divergence"))
}

func TestModuleName_OrdinaryCamelCaseSplitsOnEachCapital(t *testing.T) {
	assert.Equal(t, "alma", ModuleName("Alma"))
	assert.Equal(t, "approximate_quartiles", ModuleName("ApproximateQuartiles"))
	assert.Equal(t, "multi_length_rsi", ModuleName("MultiLengthRsi"))
	assert.Equal(t, "cvd_trend", ModuleName("CvdTrend"))
}

func TestExtendFromDefineIndicatorEnums_AddsOnlyNewNames(t *testing.T) {
	e := New()
	e.ExtendFromDefineIndicatorEnums(`Alma: "already known", Zscore: "new one", Vwap: "also new"`)

	all := e.allIndicators()
	assert.Contains(t, all, "Zscore")
	assert.Contains(t, all, "Vwap")

	count := 0
	for _, i := range all {
		if i == "Alma" {
			count++
		}
	}
	assert.Equal(t, 1, count, "a name already in the base vocabulary must not be duplicated")
}

func TestExtendFromDefineIndicatorEnums_IsIdempotentAcrossCalls(t *testing.T) {
	e := New()
	e.ExtendFromDefineIndicatorEnums(`Zscore: "doc"`)
	e.ExtendFromDefineIndicatorEnums(`Zscore: "doc again"`)

	count := 0
	for _, i := range e.allIndicators() {
		if i == "Zscore" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestProcess_DefineIndicatorEnumsRecordsExpansionAndExtendsVocabulary(t *testing.T) {
	e := New()
	batch := rustmodel.NewSymbolBatch("src/indicators.rs")
	src := []byte("define_indicator_enums!(Zscore: \"z-score\", Vwap: \"volume weighted\");\n")

	e.Process(batch, "crate", src)

	assert.Len(t, batch.MacroExpansions, 1)
	assert.Equal(t, "define_indicator_enums", batch.MacroExpansions[0].MacroName)
	assert.Equal(t, 1, batch.MacroExpansions[0].LineStart)
	assert.Contains(t, e.allIndicators(), "Zscore")
	assert.Contains(t, e.allIndicators(), "Vwap")
}

func TestProcess_GenerateBuilderRecordsExpansion(t *testing.T) {
	e := New()
	batch := rustmodel.NewSymbolBatch("src/builder.rs")
	src := []byte("generate_builder!(Config, field_a, field_b);\n")

	e.Process(batch, "crate", src)

	assert.Len(t, batch.MacroExpansions, 1)
	assert.Equal(t, "generate_builder", batch.MacroExpansions[0].MacroName)
	assert.Equal(t, []string{"with_field_a", "with_field_b"}, batch.MacroExpansions[0].TargetFunctions)
}

func TestProcess_DistributedActorRecordsExpansionAcrossMultipleLines(t *testing.T) {
	e := New()
	batch := rustmodel.NewSymbolBatch("src/actor.rs")
	src := []byte("distributed_actor! {\n    name: Worker,\n    messages: [Ping, Pong],\n}\n")

	e.Process(batch, "crate", src)

	assert.Len(t, batch.MacroExpansions, 1)
	exp := batch.MacroExpansions[0]
	assert.Equal(t, "distributed_actor", exp.MacroName)
	assert.Equal(t, rustmodel.MacroDistributedActor, exp.MacroType)
	assert.Equal(t, 1, exp.LineStart)
}

func TestProcess_PasteFromOhlcvFansOutOneHighConfidenceCallPerIndicator(t *testing.T) {
	e := New()
	batch := rustmodel.NewSymbolBatch("src/indicators.rs")
	src := []byte("paste! { [<$Indicator Input>]::from_ohlcv(data) }\n")

	e.Process(batch, "crate", src)

	assert.Len(t, batch.Calls, len(Indicators))
	for _, c := range batch.Calls {
		assert.True(t, c.IsSynthetic)
		assert.InDelta(t, 0.95, float64(c.SyntheticConfidence), 0.0001)
		assert.Contains(t, c.QualifiedCallee, "::from_ohlcv")
	}
}

func TestProcess_PasteNaNanNzFansOutPrimaryPlusThreeVariantsPerIndicator(t *testing.T) {
	e := New()
	batch := rustmodel.NewSymbolBatch("src/indicators.rs")
	src := []byte("paste! { [<$Indicator Output>]::na(x) }\n")

	e.Process(batch, "crate", src)

	// one primary call (Output) + 3 variant calls (Input, TrendOutput,
	// UnifiedOutput) per indicator, per spec.md §4.3.
	assert.Len(t, batch.Calls, len(Indicators)*4)

	var primary, variant int
	for _, c := range batch.Calls {
		switch c.SyntheticConfidence {
		case 0.95:
			primary++
			assert.Contains(t, c.QualifiedCallee, "Output::na")
		case 0.7:
			variant++
		default:
			t.Fatalf("unexpected confidence %v", c.SyntheticConfidence)
		}
	}
	assert.Equal(t, len(Indicators), primary)
	assert.Equal(t, len(Indicators)*3, variant)
}

func TestProcess_PasteNanVariantMatchesNanNotJustNa(t *testing.T) {
	e := New()
	batch := rustmodel.NewSymbolBatch("src/indicators.rs")
	src := []byte("paste! { [<$Indicator Output>]::nan(x) }\n")

	e.Process(batch, "crate", src)

	for _, c := range batch.Calls {
		assert.Contains(t, c.QualifiedCallee, "::nan")
	}
}

func TestProcess_PasteDefaultPatternFansOutConstructorPerIndicator(t *testing.T) {
	e := New()
	batch := rustmodel.NewSymbolBatch("src/indicators.rs")
	src := []byte("paste! { [<$Indicator>]::build(params) }\n")

	e.Process(batch, "crate", src)

	assert.Len(t, batch.Calls, len(Indicators))
	for _, c := range batch.Calls {
		assert.Contains(t, c.QualifiedCallee, "::new")
		assert.InDelta(t, 0.95, float64(c.SyntheticConfidence), 0.0001)
	}
}

func TestProcess_PasteCallerIDUsesContainingFunctionWhenPresent(t *testing.T) {
	e := New()
	batch := rustmodel.NewSymbolBatch("src/indicators.rs")
	batch.Functions = append(batch.Functions, rustmodel.Function{
		ID: "crate:build_all:1", Name: "build_all", LineStart: 1, LineEnd: 5,
	})
	src := []byte("fn build_all() {\n    paste! { [<$Indicator>]::build(params) }\n}\n")

	e.Process(batch, "crate", src)

	for _, c := range batch.Calls {
		assert.Equal(t, "crate:build_all:1", c.CallerID)
	}
}

func TestProcess_PasteCallerIDFallsBackToModuleScopeOutsideAnyFunction(t *testing.T) {
	e := New()
	batch := rustmodel.NewSymbolBatch("src/indicators.rs")
	src := []byte("paste! { [<$Indicator>]::build(params) }\n")

	e.Process(batch, "crate", src)

	for _, c := range batch.Calls {
		assert.Equal(t, "crate:src/indicators.rs:module_scope:1", c.CallerID)
	}
}

func TestProcess_AppendsOnlyAndNeverMutatesExistingEntries(t *testing.T) {
	e := New()
	batch := rustmodel.NewSymbolBatch("src/indicators.rs")
	existingFn := rustmodel.Function{ID: "crate:existing:1", Name: "existing"}
	batch.Functions = append(batch.Functions, existingFn)
	batch.Calls = append(batch.Calls, rustmodel.FunctionCall{CallerID: "preexisting"})

	e.Process(batch, "crate", []byte("paste! { [<$Indicator>]::build() }\n"))

	assert.Equal(t, []rustmodel.Function{existingFn}, batch.Functions)
	assert.Equal(t, "preexisting", batch.Calls[0].CallerID)
	assert.Greater(t, len(batch.Calls), 1)
}
