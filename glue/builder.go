package glue

import (
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/wavm-glue/errors"
	"github.com/wippyai/wavm-glue/wasm"
)

// initContext tells which declaration an InitExpr event belongs to.
type initContext int

const (
	initEmpty initContext = iota
	initData
	initGlobal
)

// FunctionKind distinguishes the two halves of the function index space.
type FunctionKind int

const (
	FunctionImported FunctionKind = iota
	FunctionLocal
)

func (k FunctionKind) String() string {
	if k == FunctionImported {
		return "imported"
	}
	return "local"
}

// Function is one entry of the function index space.
type Function struct {
	Symbol  string
	TypeIdx uint32
	// Ordinal is the position among imports or among local functions.
	Ordinal uint32
	Kind    FunctionKind
}

// Summary describes what a conversion produced.
type Summary struct {
	Exports      []string
	Types        int
	Imports      int
	Functions    int
	Tables       int
	Memories     int
	Globals      int
	DataSegments int
	ObjectSize   int
	ObjectFound  bool
	HasMain      bool
}

// Builder consumes decoder events in a single forward pass, emits header
// text as soon as each declaration is known and keeps only the memory images
// until the end of the module.
//
// Builder implements wasm.Handler. Every error is fatal; the artifacts are
// incomplete once Consume has failed.
type Builder struct {
	cfg    Config
	emit   *Emitter
	object *ObjectExtractor

	types    []wasm.FuncType
	funcs    []Function
	memories []*MemoryImage
	exports  []string
	aliases  map[string]string

	imports uint32
	locals  uint32
	tables  uint32
	globals uint32

	segments int
	applied  int

	ctx        initContext
	globalType wasm.GlobalType
	dataMem    *MemoryImage
	dataOffset uint64
	hasOffset  bool

	custom   string
	inCustom bool

	started bool
	done    bool
	hasMain bool
}

// NewBuilder creates a Builder writing the header to header and the
// precompiled object payload to object. object may be nil.
func NewBuilder(header, object io.Writer, cfg Config) *Builder {
	return &Builder{
		cfg:     cfg,
		emit:    NewEmitter(header, cfg.BytesPerLine),
		object:  NewObjectExtractor(object, cfg.PrecompiledSection),
		aliases: make(map[string]string),
	}
}

// HandleEvent implements wasm.Handler.
func (b *Builder) HandleEvent(ev wasm.Event) error {
	return b.Consume(ev)
}

// Consume processes one event. The header prologue is written before the
// first event.
func (b *Builder) Consume(ev wasm.Event) error {
	if b.done {
		return errors.InvalidInput(errors.PhaseBuild, fmt.Sprintf("event %T after end of module", ev))
	}
	if !b.started {
		b.started = true
		b.emit.Prologue(b.cfg.Guard())
	}
	if err := b.consume(ev); err != nil {
		return err
	}
	return b.emit.Err()
}

func (b *Builder) consume(ev wasm.Event) error {
	log := Logger()

	switch ev := ev.(type) {
	case *wasm.BeginSection:
		if ev.ID == wasm.SectionCustom {
			b.custom, b.inCustom = ev.Name, true
		}
		log.Debug("section", zap.String("section", wasm.SectionName(ev.ID)), zap.Uint32("size", ev.Size))

	case *wasm.EndSection:
		b.custom, b.inCustom = "", false

	case *wasm.SectionRawData:
		if b.inCustom && b.object.Matches(b.custom) {
			return b.object.Extract(ev.Data)
		}
		log.Debug("custom section ignored", zap.String("name", b.custom), zap.Int("size", len(ev.Data)))

	case *wasm.TypeEntry:
		b.emit.TypeID(uint32(len(b.types)))
		b.types = append(b.types, ev.Type)

	case *wasm.ImportEntry:
		return b.importEntry(ev.Import)

	case *wasm.FunctionEntry:
		return b.functionEntry(ev.TypeIdx)

	case *wasm.ExportEntry:
		return b.exportEntry(ev.Export)

	case *wasm.TableEntry:
		b.emit.Table(b.tables, ev.Table.Limits.Min)
		b.tables++

	case *wasm.MemoryEntry:
		return b.memoryEntry(ev.Memory)

	case *wasm.BeginActiveDataEntry:
		if int(ev.MemIdx) >= len(b.memories) {
			return errors.MissingIndex(errors.PhaseBuild, "memory", ev.MemIdx, len(b.memories))
		}
		b.ctx = initData
		b.dataMem = b.memories[ev.MemIdx]
		b.hasOffset = false

	case *wasm.BeginPassiveDataEntry:
		log.Warn("passive data segment ignored", zap.Int("segment", b.segments))
		b.ctx = initEmpty
		b.dataMem = nil

	case *wasm.DataBodyChunk:
		return b.dataChunk(ev.Data)

	case *wasm.EndDataEntry:
		if b.dataMem != nil && b.hasOffset {
			b.applied++
		}
		b.ctx = initEmpty
		b.dataMem = nil
		b.dataOffset, b.hasOffset = 0, false
		b.segments++

	case *wasm.BeginGlobalEntry:
		b.ctx = initGlobal
		b.globalType = ev.Type

	case *wasm.EndGlobalEntry:
		b.ctx = initEmpty

	case *wasm.InitExpr:
		switch b.ctx {
		case initData:
			b.dataInit(ev.Expr)
		case initGlobal:
			return b.globalInit(ev.Expr)
		default:
			log.Debug("initializer outside data or global entry", zap.Stringer("expr", ev.Expr))
		}

	case *wasm.ElementEntry:
		log.Warn("element segment not materialised, table stays zero-filled",
			zap.Uint32("table", ev.Element.TableIdx),
			zap.Int("entries", ev.Element.Len()))

	case *wasm.EndModule:
		b.finish()

	default:
		log.Debug("unprocessed event", zap.String("event", fmt.Sprintf("%T", ev)))
	}
	return nil
}

func (b *Builder) typeAt(idx uint32) (wasm.FuncType, error) {
	if int(idx) >= len(b.types) {
		return wasm.FuncType{}, errors.MissingIndex(errors.PhaseBuild, "type", idx, len(b.types))
	}
	return b.types[idx], nil
}

func (b *Builder) importEntry(imp wasm.Import) error {
	if imp.Desc.Kind != wasm.KindFunc {
		Logger().Debug("import not materialised",
			zap.String("module", imp.Module),
			zap.String("name", imp.Name),
			zap.String("kind", wasm.KindName(imp.Desc.Kind)))
		return nil
	}

	sig, err := b.typeAt(imp.Desc.TypeIdx)
	if err != nil {
		return err
	}
	symbol := "functionImport" + strconv.FormatUint(uint64(b.imports), 10)
	decl, err := FunctionDecl(sig, symbol)
	if err != nil {
		return withPath(err, "import", imp.Module, imp.Name)
	}
	alias := importAlias(imp.Module, imp.Name)
	if err := b.claimAlias(alias, imp.Module+"."+imp.Name, "import", imp.Module, imp.Name); err != nil {
		return err
	}

	b.emit.ImportedFunction(alias, symbol, decl)
	b.funcs = append(b.funcs, Function{
		Symbol:  symbol,
		TypeIdx: imp.Desc.TypeIdx,
		Ordinal: b.imports,
		Kind:    FunctionImported,
	})
	b.imports++
	return nil
}

func (b *Builder) functionEntry(typeIdx uint32) error {
	sig, err := b.typeAt(typeIdx)
	if err != nil {
		return err
	}
	symbol := "functionDef" + strconv.FormatUint(uint64(b.locals), 10)
	decl, err := FunctionDecl(sig, symbol)
	if err != nil {
		return withPath(err, "function", symbol)
	}

	b.emit.LocalFunction(b.locals, decl)
	b.funcs = append(b.funcs, Function{
		Symbol:  symbol,
		TypeIdx: typeIdx,
		Ordinal: b.locals,
		Kind:    FunctionLocal,
	})
	b.locals++
	return nil
}

func (b *Builder) exportEntry(exp wasm.Export) error {
	if exp.Kind != wasm.KindFunc {
		Logger().Debug("non-function export ignored",
			zap.String("name", exp.Name),
			zap.String("kind", wasm.KindName(exp.Kind)))
		return nil
	}
	if int(exp.Idx) >= len(b.funcs) {
		return errors.MissingIndex(errors.PhaseBuild, "function", exp.Idx, len(b.funcs))
	}
	fn := b.funcs[exp.Idx]
	if fn.Kind != FunctionLocal {
		return errors.UnresolvedExport(exp.Name, exp.Idx)
	}

	alias := exportAlias(exp.Name)
	if err := b.claimAlias(alias, exp.Name, "export", exp.Name); err != nil {
		return err
	}

	b.emit.ExportedFunction(alias, fn.Ordinal)
	b.exports = append(b.exports, exp.Name)
	if exp.Name == b.cfg.EntryPoint {
		b.hasMain = true
	}
	return nil
}

// claimAlias records the macro name generated for name. Sanitized names can
// collide, and a redefined macro would silently retarget the earlier one.
func (b *Builder) claimAlias(alias, name string, path ...string) error {
	if prev, ok := b.aliases[alias]; ok {
		return errors.DuplicateSymbol(path, alias, name, prev)
	}
	b.aliases[alias] = name
	return nil
}

func (b *Builder) memoryEntry(mem wasm.MemoryType) error {
	idx := len(b.memories)
	if mem.Limits.Min > b.cfg.MaxMemoryPages {
		return errors.New(errors.PhaseBuild, errors.KindOutOfBounds).
			Path("memory", strconv.Itoa(idx)).
			Value(mem.Limits.Min).
			Detail("%d pages exceeds the limit of %d pages", mem.Limits.Min, b.cfg.MaxMemoryPages).
			Build()
	}
	b.memories = append(b.memories, NewMemoryImage(mem.Limits.Min))
	return nil
}

func (b *Builder) dataInit(expr wasm.ConstExpr) {
	op, ok := expr.Single()
	switch {
	case ok && op.Opcode == wasm.OpI32Const:
		b.dataOffset, b.hasOffset = uint64(uint32(op.I32)), true
	case ok && op.Opcode == wasm.OpI64Const:
		b.dataOffset, b.hasOffset = uint64(op.I64), true
	default:
		Logger().Warn("data segment offset is not a constant, segment skipped",
			zap.Int("segment", b.segments),
			zap.Stringer("expr", expr))
		b.hasOffset = false
	}
}

func (b *Builder) dataChunk(chunk []byte) error {
	if b.dataMem == nil || !b.hasOffset {
		return nil
	}
	if err := b.dataMem.Apply(b.dataOffset, chunk); err != nil {
		return withPath(err, "data", strconv.Itoa(b.segments))
	}
	b.dataOffset += uint64(len(chunk))
	return nil
}

func (b *Builder) globalInit(expr wasm.ConstExpr) error {
	idx := b.globals
	path := []string{"global", strconv.FormatUint(uint64(idx), 10)}

	typ, err := MapType(b.globalType.ValType)
	if err != nil {
		return withPath(err, path...)
	}

	var value string
	op, ok := expr.Single()
	switch {
	case ok && b.globalType.ValType == wasm.ValI32 && op.Opcode == wasm.OpI32Const:
		value = strconv.FormatInt(int64(op.I32), 10)
	case ok && b.globalType.ValType == wasm.ValI64 && op.Opcode == wasm.OpI64Const:
		value = strconv.FormatInt(op.I64, 10)
	default:
		return errors.BadInitializer(path, b.globalType.ValType.String(),
			fmt.Sprintf("expected an integer constant of the declared type, got %s", expr))
	}

	b.emit.Global(idx, b.cfg.GlobalConstPolicy.qualifies(b.globalType.Mutable), typ, value)
	b.globals++
	return nil
}

func (b *Builder) finish() {
	for i, img := range b.memories {
		b.emit.Memory(uint32(i), img)
	}
	if b.hasMain {
		b.emit.Main(exportAlias(b.cfg.EntryPoint))
	}
	b.emit.Epilogue(b.cfg.Guard())
	b.done = true
}

// Done reports whether EndModule has been consumed.
func (b *Builder) Done() bool { return b.done }

// Functions returns the function index space built so far.
func (b *Builder) Functions() []Function {
	return append([]Function(nil), b.funcs...)
}

// Memories returns the memory images built so far.
func (b *Builder) Memories() []*MemoryImage {
	return append([]*MemoryImage(nil), b.memories...)
}

// Summary reports the counts of everything consumed so far.
func (b *Builder) Summary() Summary {
	return Summary{
		Exports:      append([]string(nil), b.exports...),
		Types:        len(b.types),
		Imports:      int(b.imports),
		Functions:    int(b.locals),
		Tables:       int(b.tables),
		Memories:     len(b.memories),
		Globals:      int(b.globals),
		DataSegments: b.applied,
		ObjectSize:   b.object.Size(),
		ObjectFound:  b.object.Found(),
		HasMain:      b.hasMain,
	}
}

func importAlias(module, name string) string {
	return "wavm_" + Identifier(module) + "_" + Identifier(name)
}

func exportAlias(name string) string {
	return "wavm_exported_function_" + Identifier(name)
}
