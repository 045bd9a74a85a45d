package rustparse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/rcie/pkg/rustmodel"
)

func TestContainingFunctionID_PicksInnermostEnclosingFunction(t *testing.T) {
	batch := rustmodel.NewSymbolBatch("src/lib.rs")
	batch.Functions = []rustmodel.Function{
		{ID: "outer", LineStart: 1, LineEnd: 20},
		{ID: "inner", LineStart: 5, LineEnd: 10},
	}

	assert.Equal(t, "inner", containingFunctionID(batch, 7))
	assert.Equal(t, "outer", containingFunctionID(batch, 15))
	assert.Equal(t, "", containingFunctionID(batch, 30))
}

func TestContainingFunctionID_EmptyBatchReturnsEmptyID(t *testing.T) {
	batch := rustmodel.NewSymbolBatch("src/lib.rs")
	assert.Equal(t, "", containingFunctionID(batch, 1))
}

func TestSymbolBatchFromSet_PreservesAllEntitySlices(t *testing.T) {
	set := &rustmodel.SymbolSet{
		Functions: []rustmodel.Function{{ID: "f"}},
		Types:     []rustmodel.Type{{ID: "t"}},
		Actors:    []rustmodel.Actor{{Name: "A"}},
	}
	batch := symbolBatchFromSet("src/lib.rs", set)

	assert.Equal(t, "src/lib.rs", batch.FilePath)
	assert.Equal(t, set.Functions, batch.Functions)
	assert.Equal(t, set.Types, batch.Types)
	assert.Equal(t, set.Actors, batch.Actors)
}
