package wasm

// Event is one structural element of a module, delivered by Decoder in stream order.
//
// The concrete types are the pointer types declared in this file; consumers
// dispatch with a type switch.
type Event interface {
	event()
}

// Handler consumes decoder events. Returning an error stops decoding and the
// error is returned from Decode unchanged.
type Handler interface {
	HandleEvent(Event) error
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(Event) error

// HandleEvent calls f(ev).
func (f HandlerFunc) HandleEvent(ev Event) error {
	return f(ev)
}

// BeginSection starts a section. Name is set for custom sections only.
type BeginSection struct {
	Name string
	Size uint32
	ID   byte
}

// EndSection closes the section opened by the matching BeginSection.
type EndSection struct {
	Name string
	ID   byte
}

// TypeEntry declares the function type at Index of the type index space.
type TypeEntry struct {
	Type  FuncType
	Index uint32
}

// ImportEntry declares one import of any kind.
type ImportEntry struct {
	Import Import
}

// FunctionEntry declares one locally defined function by its type index.
type FunctionEntry struct {
	TypeIdx uint32
}

// TableEntry declares one locally defined table.
type TableEntry struct {
	Table TableType
}

// MemoryEntry declares one locally defined linear memory.
type MemoryEntry struct {
	Memory MemoryType
}

// BeginGlobalEntry opens a global definition; its initializer follows as InitExpr.
type BeginGlobalEntry struct {
	Type GlobalType
}

// EndGlobalEntry closes a global definition.
type EndGlobalEntry struct{}

// InitExpr carries a decoded constant expression. It follows BeginGlobalEntry
// (global value) or BeginActiveDataEntry (segment offset).
type InitExpr struct {
	Expr ConstExpr
}

// ExportEntry declares one export.
type ExportEntry struct {
	Export Export
}

// StartEntry names the start function.
type StartEntry struct {
	FuncIdx uint32
}

// ElementEntry carries one element segment. Offsets are raw expression bytes.
type ElementEntry struct {
	Element Element
}

// BeginActiveDataEntry opens an active data segment targeting MemIdx.
// Its offset follows as InitExpr, then the payload as DataBodyChunk events.
type BeginActiveDataEntry struct {
	MemIdx uint32
}

// BeginPassiveDataEntry opens a passive data segment; payload chunks follow.
type BeginPassiveDataEntry struct{}

// DataBodyChunk is a contiguous slice of the current data segment's payload.
// Chunks of one segment arrive in order and do not overlap.
type DataBodyChunk struct {
	Data []byte
}

// EndDataEntry closes the current data segment.
type EndDataEntry struct{}

// SectionRawData is the payload of a custom section (after its name).
type SectionRawData struct {
	Data []byte
}

// EndModule is the last event of a successfully decoded module.
type EndModule struct{}

func (*BeginSection) event()          {}
func (*EndSection) event()            {}
func (*TypeEntry) event()             {}
func (*ImportEntry) event()           {}
func (*FunctionEntry) event()         {}
func (*TableEntry) event()            {}
func (*MemoryEntry) event()           {}
func (*BeginGlobalEntry) event()      {}
func (*EndGlobalEntry) event()        {}
func (*InitExpr) event()              {}
func (*ExportEntry) event()           {}
func (*StartEntry) event()            {}
func (*ElementEntry) event()          {}
func (*BeginActiveDataEntry) event()  {}
func (*BeginPassiveDataEntry) event() {}
func (*DataBodyChunk) event()         {}
func (*EndDataEntry) event()          {}
func (*SectionRawData) event()        {}
func (*EndModule) event()             {}
