package rustmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFunctionID_JoinsCrateQualifiedNameAndLine(t *testing.T) {
	assert.Equal(t, "billing:billing::process_payment:42", FunctionID("billing", "billing::process_payment", 42))
}

func TestNormalizeCrateNameForQualifiedName_ReplacesHyphensOnly(t *testing.T) {
	assert.Equal(t, "my_crate_name", NormalizeCrateNameForQualifiedName("my-crate-name"))
	assert.Equal(t, "already_underscored", NormalizeCrateNameForQualifiedName("already_underscored"))
}

func TestQualifiedName_JoinsModulePathTypeAndName(t *testing.T) {
	assert.Equal(t, "mod1::mod2::Type::method", QualifiedName([]string{"mod1", "mod2"}, "Type", "method"))
	assert.Equal(t, "mod1::free_fn", QualifiedName([]string{"mod1"}, "", "free_fn"))
	assert.Equal(t, "bare_fn", QualifiedName(nil, "", "bare_fn"))
}

func TestFunction_GenerateIDAndDedupKey(t *testing.T) {
	f := Function{CrateName: "billing", QualifiedName: "billing::process_payment", LineStart: 10}
	f.GenerateID()

	assert.Equal(t, "billing:billing::process_payment:10", f.ID)
	assert.Equal(t, "billing::process_payment:10", f.DedupKey())
}

func TestType_GenerateIDAndDedupKey(t *testing.T) {
	ty := Type{CrateName: "orders", QualifiedName: "orders::Order", LineStart: 5}
	ty.GenerateID()

	assert.Equal(t, "orders:orders::Order:5", ty.ID)
	assert.Equal(t, "orders::Order:5", ty.DedupKey())
}

func TestImpl_DedupKeyAndHasTrait(t *testing.T) {
	inherent := Impl{TypeName: "Order", LineStart: 1}
	traitImpl := Impl{TypeName: "Order", TraitName: "Display", LineStart: 1}

	assert.Equal(t, "Order:1", inherent.DedupKey())
	assert.False(t, inherent.HasTrait())
	assert.True(t, traitImpl.HasTrait())
}

func TestActor_DedupKey(t *testing.T) {
	a := Actor{Name: "Worker", CrateName: "crate"}
	assert.Equal(t, "Worker:crate", a.DedupKey())
}

func TestIsValidActorName_RejectsDoubleColonQualifiedNames(t *testing.T) {
	assert.True(t, IsValidActorName("Worker"))
	assert.False(t, IsValidActorName("module::Worker"))
}

func TestMessageType_GenerateID(t *testing.T) {
	m := MessageType{CrateName: "crate", QualifiedName: "crate::Ping", LineStart: 3}
	m.GenerateID()
	assert.Equal(t, "crate:crate::Ping:3", m.ID)
}

func TestMessageHandler_DedupKey(t *testing.T) {
	h := MessageHandler{ActorName: "Worker", MessageType: "Ping", Line: 7}
	assert.Equal(t, "Worker:Ping:7", h.DedupKey())
}

func TestMessageSend_DedupKey(t *testing.T) {
	s := MessageSend{CrateName: "crate", SenderActor: "A", ReceiverActor: "B", MessageType: "Ping", Line: 9}
	assert.Equal(t, "crate:A:B:Ping:9", s.DedupKey())
}

func TestActorSpawn_DedupKey(t *testing.T) {
	s := ActorSpawn{ParentActorName: "Parent", ChildActorName: "Child", FilePath: "src/a.rs", Line: 4}
	assert.Equal(t, "Parent:Child:src/a.rs:4", s.DedupKey())
}

func TestDistributedActor_DedupKey(t *testing.T) {
	d := DistributedActor{CrateName: "crate", ActorName: "Worker", Line: 2}
	assert.Equal(t, "crate:Worker:2", d.DedupKey())
}

func TestMacroExpansion_DedupKey(t *testing.T) {
	m := MacroExpansion{FilePath: "src/a.rs", LineStart: 12, MacroName: "paste"}
	assert.Equal(t, "src/a.rs:12:paste", m.DedupKey())
}
