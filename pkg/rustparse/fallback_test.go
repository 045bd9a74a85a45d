package rustparse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/rcie/pkg/rustmodel"
)

func TestFallbackParse_ExtractsFunctionsStructsEnumsAndTraits(t *testing.T) {
	src := []byte(`use std::collections::HashMap;

pub struct Order {
    id: u64,
}

enum Status {
    Pending,
    Done,
}

pub trait Payable {
    fn pay(&self);
}

pub fn process(order: Order) {
    validate(order);
}

fn validate(order: Order) {}
`)

	batch := fallbackParse("src/orders.rs", "billing", src)

	assert.Len(t, batch.Functions, 2)
	assert.Len(t, batch.Types, 3)
	assert.Len(t, batch.Imports, 1)
	assert.Equal(t, "std::collections", batch.Imports[0].ModulePath)
	assert.Equal(t, "HashMap", batch.Imports[0].ImportedItems[0].Name)

	var kinds []rustmodel.TypeKind
	for _, ty := range batch.Types {
		kinds = append(kinds, ty.Kind)
	}
	assert.ElementsMatch(t, []rustmodel.TypeKind{rustmodel.KindStruct, rustmodel.KindEnum, rustmodel.KindTrait}, kinds)

	assert.Len(t, batch.Errors, 1)
	assert.Equal(t, "fallback_parse", batch.Errors[0].Kind)
}

func TestFallbackParse_RecordsSameFileCallFromOneFunctionToAnother(t *testing.T) {
	src := []byte(`pub fn process(order: Order) {
    validate(order);
}

fn validate(order: Order) {}
`)

	batch := fallbackParse("src/orders.rs", "billing", src)

	assert.Len(t, batch.Calls, 1)
	assert.Equal(t, "validate", batch.Calls[0].CalleeName)
	assert.Equal(t, rustmodel.CallDirect, batch.Calls[0].CallType)
	assert.Equal(t, batch.Functions[0].ID, batch.Calls[0].CallerID)
}

func TestFallbackParse_SkipsSelfCallsKeywordsAndUnknownCallees(t *testing.T) {
	src := []byte(`pub fn process(order: Order) {
    if validate(order) {
        process(order);
    }
    external_helper(order);
}
`)

	batch := fallbackParse("src/orders.rs", "billing", src)

	// "process" (self-call), "if" (keyword), and "external_helper" (not a
	// function defined in this file) must all be excluded.
	assert.Empty(t, batch.Calls)
}

func TestFallbackParse_VisibilityCapturesPubAndPubCrateQualifiers(t *testing.T) {
	src := []byte(`pub fn a() {}
pub(crate) fn b() {}
fn c() {}
`)

	batch := fallbackParse("src/lib.rs", "crate", src)

	byName := map[string]rustmodel.Function{}
	for _, fn := range batch.Functions {
		byName[fn.Name] = fn
	}

	assert.Equal(t, "pub", byName["a"].Visibility)
	assert.Equal(t, "pub(crate)", byName["b"].Visibility)
	assert.Equal(t, "", byName["c"].Visibility)
}

func TestFallbackParse_DetectsAsyncAndUnsafeModifiers(t *testing.T) {
	src := []byte(`pub async fn fetch() {}
pub unsafe fn raw_access() {}
`)

	batch := fallbackParse("src/lib.rs", "crate", src)

	byName := map[string]rustmodel.Function{}
	for _, fn := range batch.Functions {
		byName[fn.Name] = fn
	}

	assert.True(t, byName["fetch"].IsAsync)
	assert.False(t, byName["fetch"].IsUnsafe)
	assert.True(t, byName["raw_access"].IsUnsafe)
	assert.False(t, byName["raw_access"].IsAsync)
}

func TestFallbackParse_FunctionIDsAreStableAndQualifiedNameIsBare(t *testing.T) {
	src := []byte(`pub fn process() {}
`)

	batch := fallbackParse("src/lib.rs", "billing", src)

	assert.Equal(t, "process", batch.Functions[0].QualifiedName)
	assert.Equal(t, "billing:process:1", batch.Functions[0].ID)
}
