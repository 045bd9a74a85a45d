// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rustmodel defines the entity and edge records produced by the
// extraction pipeline: functions, types, impls, actors, messages, macro
// expansions, and the calls that connect them.
package rustmodel

import (
	"fmt"
	"strings"
)

// FunctionID returns the deterministic identity of a definition: crate,
// qualified name, and starting line, colon-joined. This is the MERGE key
// in the graph; merge-time dedup uses DedupKey (qualified_name, line_start)
// instead.
func FunctionID(crateName, qualifiedName string, lineStart int) string {
	return fmt.Sprintf("%s:%s:%d", crateName, qualifiedName, lineStart)
}

// NormalizeCrateNameForQualifiedName replaces '-' with '_' for use inside
// qualified-name strings only; crate ids keep the original hyphenation.
func NormalizeCrateNameForQualifiedName(crateName string) string {
	return strings.ReplaceAll(crateName, "-", "_")
}

// QualifiedName joins a module path, an optional enclosing type name, and a
// bare name with "::" the way Rust paths are written.
func QualifiedName(modulePath []string, typeName, name string) string {
	parts := make([]string, 0, len(modulePath)+2)
	parts = append(parts, modulePath...)
	if typeName != "" {
		parts = append(parts, typeName)
	}
	parts = append(parts, name)
	return strings.Join(parts, "::")
}

// Visibility mirrors the textual visibility qualifier captured verbatim
// from source ("pub", "pub(crate)", "" for private).
type Visibility = string

// FunctionContextKind discriminates how a function's enclosing scope was
// derived from the walker's scope-frame stack (spec.md §4.1).
type FunctionContextKind string

const (
	ContextFree            FunctionContextKind = "Free"
	ContextTraitImpl       FunctionContextKind = "TraitImpl"
	ContextRegularImpl     FunctionContextKind = "RegularImpl"
	ContextTraitDecl       FunctionContextKind = "TraitDeclaration"
	ContextMacroExpansion  FunctionContextKind = "MacroExpansion"
)

// FunctionContext records which frame produced a function and the scoping
// information needed to answer is_trait_impl / is_method questions later.
type FunctionContext struct {
	Kind      FunctionContextKind
	TraitName string // set for TraitImpl, TraitDeclaration
	TypeName  string // set for TraitImpl, RegularImpl
	MacroName string // set for MacroExpansion
}

// Parameter is a single function parameter parsed verbatim from source; no
// type normalization is performed (spec.md §4.1 "Function parameters").
type Parameter struct {
	Name      string
	ParamType string
	IsSelf    bool
	IsMutable bool
}

// Function is a function or method definition extracted from a CST.
type Function struct {
	ID              string
	Name            string
	QualifiedName   string
	CrateName       string
	ModulePath      string // ":"-joined, matches spec.md §3
	FilePath        string
	LineStart       int
	LineEnd         int
	Visibility      Visibility
	IsAsync         bool
	IsUnsafe        bool
	IsGeneric       bool
	IsTest          bool
	IsTraitImpl     bool
	IsMethod        bool
	Parameters      []Parameter
	ReturnType      string
	Signature       string
	DocComment      string
	FunctionContext FunctionContext
}

// GenerateID sets f.ID from the identity rule in spec.md §3.
func (f *Function) GenerateID() {
	f.ID = FunctionID(f.CrateName, f.QualifiedName, f.LineStart)
}

// DedupKey is the merge-time dedup key for functions: (qualified_name, line_start).
func (f *Function) DedupKey() string {
	return fmt.Sprintf("%s:%d", f.QualifiedName, f.LineStart)
}

// TypeKind enumerates the definitions a Type record can represent.
type TypeKind string

const (
	KindStruct    TypeKind = "Struct"
	KindEnum      TypeKind = "Enum"
	KindTrait     TypeKind = "Trait"
	KindTypeAlias TypeKind = "TypeAlias"
	KindUnion     TypeKind = "Union"
)

// Field is a struct/variant field captured for display and dispatch hints.
type Field struct {
	Name       string
	FieldType  string
	Visibility Visibility
	DocComment string
}

// Variant is a single enum variant.
type Variant struct {
	Name       string
	Fields     []Field
	DocComment string
}

// Type is a struct, enum, trait, type alias, or union definition.
type Type struct {
	ID            string
	Name          string
	QualifiedName string
	CrateName     string
	ModulePath    string
	FilePath      string
	LineStart     int
	LineEnd       int
	Kind          TypeKind
	Visibility    Visibility
	IsGeneric     bool
	IsTest        bool
	DocComment    string
	Fields        []Field
	Variants      []Variant
	Methods       []string // not filled by the extractor or the merger; impl method names are on Impl.Methods
}

// GenerateID sets t.ID from the identity rule in spec.md §3.
func (t *Type) GenerateID() {
	t.ID = FunctionID(t.CrateName, t.QualifiedName, t.LineStart)
}

// DedupKey is the merge-time dedup key for types: (qualified_name, line_start).
func (t *Type) DedupKey() string {
	return fmt.Sprintf("%s:%d", t.QualifiedName, t.LineStart)
}

// Impl is one `impl [Trait for] Type { ... }` block.
type Impl struct {
	TypeName  string
	TraitName string // "" when inherent
	Methods   []string
	FilePath  string
	LineStart int
	LineEnd   int
	IsGeneric bool
}

// DedupKey is the merge-time dedup key for impls: (type_name, line_start).
func (i *Impl) DedupKey() string {
	return fmt.Sprintf("%s:%d", i.TypeName, i.LineStart)
}

// HasTrait reports whether this is a trait impl rather than an inherent one.
func (i *Impl) HasTrait() bool { return i.TraitName != "" }

// ActorType enumerates the actor-implementation styles the walker can infer.
type ActorType string

const (
	ActorLocal       ActorType = "Local"
	ActorDistributed ActorType = "Distributed"
	ActorSupervisor  ActorType = "Supervisor"
	ActorUnknown     ActorType = "Unknown"
)

// Actor is a type for which an Actor trait impl (or actor-generating macro)
// was recognized.
type Actor struct {
	Name              string
	QualifiedName     string
	CrateName         string
	ModulePath        string
	FilePath          string
	LineStart         int
	LineEnd           int
	Visibility        Visibility
	DocComment        string
	ActorType         ActorType
	IsDistributed     bool
	IsTest            bool
	LocalMessages     []string
	InferredFromMsg   bool
}

// DedupKey is the merge-time dedup key for actors: (name, crate).
func (a *Actor) DedupKey() string {
	return fmt.Sprintf("%s:%s", a.Name, a.CrateName)
}

// IsValidActorName rejects names containing "::" (enum variants collapsed
// into an actor's name), per spec.md §3 invariants.
func IsValidActorName(name string) bool {
	return !strings.Contains(name, "::")
}

// MessageKind enumerates how a message type is expected to be used.
type MessageKind string

const (
	MessageTell    MessageKind = "Tell"
	MessageAsk     MessageKind = "Ask"
	MessageGeneric MessageKind = "Message"
	MessageQuery   MessageKind = "Query"
)

// MessageType is a type definition recognized as a message payload.
type MessageType struct {
	ID            string
	Name          string
	QualifiedName string
	CrateName     string
	ModulePath    string
	FilePath      string
	LineStart     int
	LineEnd       int
	Kind          MessageKind
	Visibility    Visibility
}

// GenerateID sets m.ID from the identity rule in spec.md §3.
func (m *MessageType) GenerateID() {
	m.ID = FunctionID(m.CrateName, m.QualifiedName, m.LineStart)
}

// MessageHandler records `impl Message<M> for Actor`.
type MessageHandler struct {
	ActorName   string
	MessageType string
	ReplyType   string
	IsAsync     bool
	FilePath    string
	Line        int
	CrateName   string
}

// DedupKey is the merge-time dedup key for handlers: (actor,message,line).
func (h *MessageHandler) DedupKey() string {
	return fmt.Sprintf("%s:%s:%d", h.ActorName, h.MessageType, h.Line)
}

// SendMethod distinguishes fire-and-forget sends from request/reply sends.
type SendMethod string

const (
	SendTell SendMethod = "Tell"
	SendAsk  SendMethod = "Ask"
)

// MessageSend is a `.tell(_)` / `.ask(_)` call site.
type MessageSend struct {
	SenderActor          string
	ReceiverActor        string
	ReceiverChain        string // verbatim dotted chain, e.g. "self.nested.foo_ref"
	ReceiverLastSegment  string // "foo_ref" — see SPEC_FULL.md §9.1
	MessageType          string
	SendMethod           SendMethod
	Line                 int
	FilePath             string
	CrateName            string
}

// DedupKey is the merge-time dedup key for sends: (crate,sender,receiver,message,line).
func (s *MessageSend) DedupKey() string {
	return fmt.Sprintf("%s:%s:%s:%s:%d", s.CrateName, s.SenderActor, s.ReceiverActor, s.MessageType, s.Line)
}

// SpawnMethod enumerates the concrete spawn call forms the walker recognizes.
type SpawnMethod string

const (
	SpawnSpawn            SpawnMethod = "Spawn"
	SpawnSpawnWithMailbox SpawnMethod = "SpawnWithMailbox"
	SpawnSpawnLink        SpawnMethod = "SpawnLink"
	SpawnSpawnInThread    SpawnMethod = "SpawnInThread"
	SpawnSpawnWithStorage SpawnMethod = "SpawnWithStorage"
	SpawnActorTrait       SpawnMethod = "Actor"
	SpawnModuleSpawn      SpawnMethod = "ModuleSpawn"
)

// SpawnPattern enumerates which textual shape matched a spawn call site.
type SpawnPattern string

const (
	SpawnDirectType     SpawnPattern = "DirectType"
	SpawnTraitMethod    SpawnPattern = "TraitMethod"
	SpawnModuleFunction SpawnPattern = "ModuleFunction"
)

// ActorSpawn is a recognized actor-spawn call site.
type ActorSpawn struct {
	ParentActorName string
	ChildActorName  string
	SpawnMethod     SpawnMethod
	SpawnPattern    SpawnPattern
	Context         string
	Arguments       string
	Line            int
	FilePath        string
	FromCrate       string
	ToCrate         string
}

// DedupKey is the merge-time dedup key for spawns: (parent,child,file,line).
func (s *ActorSpawn) DedupKey() string {
	return fmt.Sprintf("%s:%s:%s:%d", s.ParentActorName, s.ChildActorName, s.FilePath, s.Line)
}

// DistributedActor records an actor introduced via distributed_actor! or
// kameo(remote).
type DistributedActor struct {
	ID                   string
	ActorName            string
	CrateName            string
	FilePath             string
	Line                 int
	IsTest               bool
	DistributedMessages  []string
	LocalMessages        []string
}

// DedupKey is the merge-time dedup key: (crate,actor,line).
func (d *DistributedActor) DedupKey() string {
	return fmt.Sprintf("%s:%s:%d", d.CrateName, d.ActorName, d.Line)
}

// MacroType enumerates the macro kinds the walker and macro engine detect.
type MacroType string

const (
	MacroPaste            MacroType = "paste"
	MacroAsyncTrait       MacroType = "async_trait"
	MacroDistributedActor MacroType = "distributed_actor"
	MacroDerive           MacroType = "derive"
	MacroCustom           MacroType = "custom"
)

// MacroContext links a synthetic call back to the macro invocation that
// produced it.
type MacroContext struct {
	ExpansionID      string
	MacroType        string
	ExpansionLine    int
}

// MacroExpansion is a detected macro invocation (declarative or attribute).
type MacroExpansion struct {
	ID                  string // "{file}:{line}:{macro_name}"
	MacroName           string
	CrateName           string
	FilePath            string
	LineStart           int
	LineEnd             int
	MacroType           MacroType
	ExpansionPattern    string
	ContainingFunction  string // Function.ID, if inside one
	TargetFunctions     []string
}

// DedupKey is the merge-time dedup key: (file, line, macro_name).
func (m *MacroExpansion) DedupKey() string {
	return fmt.Sprintf("%s:%d:%s", m.FilePath, m.LineStart, m.MacroName)
}

// CallType enumerates the textual shape of a call expression.
type CallType string

const (
	CallDirect     CallType = "Direct"
	CallMethod     CallType = "Method"
	CallAssociated CallType = "Associated"
	CallMacro      CallType = "Macro"
)

// FunctionCall is a CALLS edge, resolved or not.
type FunctionCall struct {
	CallerID             string
	CallerModule         string
	CalleeName           string
	QualifiedCallee      string // "" until resolved
	CallType             CallType
	Line                 int
	CrossCrate           bool
	FromCrate            string
	ToCrate              string // "" until resolved
	FilePath             string
	IsSynthetic          bool
	MacroContext         *MacroContext
	SyntheticConfidence  float32
}

// ImportType classifies the form of a `use` declaration.
type ImportType string

const (
	ImportSimple  ImportType = "Simple"
	ImportGrouped ImportType = "Grouped"
	ImportGlob    ImportType = "Glob"
	ImportModule  ImportType = "Module"
)

// ImportedItem is one name brought into scope by a `use` declaration,
// optionally renamed with `as`.
type ImportedItem struct {
	Name  string
	Alias string
}

// Import records a `use_declaration` for later cross-file resolution.
type Import struct {
	ModulePath     string
	ImportedItems  []ImportedItem
	ImportType     ImportType
	FilePath       string
	Line           int
}

// Crate is accepted as pipeline input from the external workspace-discovery
// collaborator (spec.md §1 Non-goals; SPEC_FULL.md §3.1).
type Crate struct {
	Name              string
	Version           string
	Path              string
	IsWorkspaceMember bool
	IsExternal        bool
}

// ParseError records a CST node or file that could not be decoded, per the
// propagation policy in spec.md §7: the batch/run continues regardless.
type ParseError struct {
	FilePath string
	Line     int
	Message  string
	Kind     string
}
