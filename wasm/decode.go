package wasm

import (
	"errors"
	"fmt"

	"github.com/wippyai/wavm-glue/wasm/internal/binary"
)

// Parsing errors returned by Decode.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

// DefaultChunkSize is the maximum payload size of one DataBodyChunk event.
const DefaultChunkSize = 4096

// Decoder turns a WebAssembly binary into a forward-only stream of events.
// A Decoder holds no per-module state and may be reused.
type Decoder struct {
	// ChunkSize bounds the size of DataBodyChunk payloads. Zero means DefaultChunkSize.
	ChunkSize int
}

// NewDecoder creates a Decoder with default settings.
func NewDecoder() *Decoder {
	return &Decoder{ChunkSize: DefaultChunkSize}
}

// Decode walks data once and delivers every structural event to h, ending with
// EndModule. Malformed input yields a *binary.ParseError or one of the sentinel
// errors; an error returned by h stops decoding and is returned as is.
func (d *Decoder) Decode(data []byte, h Handler) error {
	err := d.decode(data, h)
	var he *handlerError
	if errors.As(err, &he) {
		return he.err
	}
	return err
}

// Decode decodes data with a default Decoder.
func Decode(data []byte, h Handler) error {
	return NewDecoder().Decode(data, h)
}

type handlerError struct {
	err error
}

func (e *handlerError) Error() string { return e.err.Error() }

func (d *Decoder) decode(data []byte, h Handler) error {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return r.WrapError("header", err)
	}
	if magic != Magic {
		return ErrInvalidMagic
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return r.WrapError("header", err)
	}
	if version != Version {
		return ErrInvalidVersion
	}

	chunk := d.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	// Track section ordering using canonical order, not section IDs
	var lastSectionOrder int

	for r.Len() > 0 {
		sectionID, err := r.ReadByte()
		if err != nil {
			return r.WrapError("section header", err)
		}

		// Custom sections can appear anywhere
		if sectionID != SectionCustom {
			order := sectionOrder(sectionID)
			if order == 0 {
				return r.WrapError("section header", fmt.Errorf("unknown section ID: 0x%02x", sectionID))
			}
			if order <= lastSectionOrder {
				return r.WrapError("section header", fmt.Errorf("section %d appears out of order", sectionID))
			}
			lastSectionOrder = order
		}

		size, err := r.ReadU32()
		if err != nil {
			return r.WrapError("section size", err)
		}
		start := r.Position()
		if int(size) > r.Len() {
			return r.WrapError("section data", fmt.Errorf("%w: section of %d bytes, %d left", binary.ErrShortRead, size, r.Len()))
		}
		payload := data[start : start+int(size)]
		if err := r.Skip(int(size)); err != nil {
			return r.WrapError("section data", err)
		}

		sd := &sectionDecoder{
			r:       binary.NewSubReader(payload, start),
			h:       h,
			payload: payload,
			base:    start,
			chunk:   chunk,
		}
		if err := sd.decodeSection(sectionID, size); err != nil {
			return err
		}
	}

	return emit(h, &EndModule{})
}

// sectionOrder returns the canonical ordering for a section ID, 0 if unknown.
// Sections must appear in this order, which differs from their IDs.
func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionTag:
		return 6 // Tag comes after Memory, before Global
	case SectionGlobal:
		return 7
	case SectionExport:
		return 8
	case SectionStart:
		return 9
	case SectionElement:
		return 10
	case SectionDataCount:
		return 11 // DataCount must come before Code
	case SectionCode:
		return 12
	case SectionData:
		return 13
	default:
		return 0
	}
}

func emit(h Handler, ev Event) error {
	if err := h.HandleEvent(ev); err != nil {
		return &handlerError{err: err}
	}
	return nil
}

type sectionDecoder struct {
	r       *binary.Reader
	h       Handler
	payload []byte
	base    int
	chunk   int
}

func (s *sectionDecoder) decodeSection(id byte, size uint32) error {
	begin := &BeginSection{ID: id, Size: size}
	if id == SectionCustom {
		name, err := s.r.ReadName()
		if err != nil {
			return s.r.WrapError("custom section", err)
		}
		begin.Name = name
	}
	if err := emit(s.h, begin); err != nil {
		return err
	}

	var err error
	switch id {
	case SectionCustom:
		err = s.customSection()
	case SectionType:
		err = s.typeSection()
	case SectionImport:
		err = s.importSection()
	case SectionFunction:
		err = s.functionSection()
	case SectionTable:
		err = s.tableSection()
	case SectionMemory:
		err = s.memorySection()
	case SectionTag:
		err = s.tagSection()
	case SectionGlobal:
		err = s.globalSection()
	case SectionExport:
		err = s.exportSection()
	case SectionStart:
		err = s.startSection()
	case SectionElement:
		err = s.elementSection()
	case SectionDataCount:
		_, err = s.r.ReadU32()
	case SectionCode:
		err = s.codeSection()
	case SectionData:
		err = s.dataSection()
	}
	if err == nil && s.r.Len() != 0 {
		err = fmt.Errorf("section size mismatch: %d trailing bytes", s.r.Len())
	}
	if err != nil {
		var he *handlerError
		if errors.As(err, &he) {
			return err
		}
		return s.r.WrapError(SectionName(id)+" section", err)
	}

	return emit(s.h, &EndSection{ID: id, Name: begin.Name})
}

func (s *sectionDecoder) customSection() error {
	rest, err := s.r.ReadRemaining()
	if err != nil {
		return err
	}
	return emit(s.h, &SectionRawData{Data: rest})
}

func (s *sectionDecoder) typeSection() error {
	count, err := s.r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		form, err := s.r.ReadByte()
		if err != nil {
			return fmt.Errorf("read type form at index %d: %w", i, err)
		}
		switch form {
		case FuncTypeByte:
		case RecTypeByte, SubTypeByte, SubFinalByte, StructTypeByte, ArrayTypeByte:
			return fmt.Errorf("unsupported GC type form 0x%02x at index %d", form, i)
		default:
			return fmt.Errorf("expected functype (0x60), got 0x%02x", form)
		}
		params, err := s.readValTypes()
		if err != nil {
			return err
		}
		results, err := s.readValTypes()
		if err != nil {
			return err
		}
		ev := &TypeEntry{Index: i, Type: FuncType{Params: params, Results: results}}
		if err := emit(s.h, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *sectionDecoder) importSection() error {
	count, err := s.r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		module, err := s.r.ReadName()
		if err != nil {
			return err
		}
		name, err := s.r.ReadName()
		if err != nil {
			return err
		}
		kind, err := s.r.ReadByte()
		if err != nil {
			return err
		}

		imp := Import{Module: module, Name: name, Desc: ImportDesc{Kind: kind}}

		switch kind {
		case KindFunc:
			imp.Desc.TypeIdx, err = s.r.ReadU32()
		case KindTable:
			var table TableType
			table, err = s.readTableType()
			imp.Desc.Table = &table
		case KindMemory:
			var memory MemoryType
			memory, err = s.readMemoryType()
			imp.Desc.Memory = &memory
		case KindGlobal:
			var global GlobalType
			global, err = s.readGlobalType()
			imp.Desc.Global = &global
		case KindTag:
			err = s.skipTagType()
		default:
			return fmt.Errorf("unknown import kind: %d", kind)
		}
		if err != nil {
			return err
		}

		if err := emit(s.h, &ImportEntry{Import: imp}); err != nil {
			return err
		}
	}
	return nil
}

func (s *sectionDecoder) functionSection() error {
	count, err := s.r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		typeIdx, err := s.r.ReadU32()
		if err != nil {
			return err
		}
		if err := emit(s.h, &FunctionEntry{TypeIdx: typeIdx}); err != nil {
			return err
		}
	}
	return nil
}

func (s *sectionDecoder) tableSection() error {
	count, err := s.r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		table, err := s.readTableType()
		if err != nil {
			return err
		}
		if err := emit(s.h, &TableEntry{Table: table}); err != nil {
			return err
		}
	}
	return nil
}

func (s *sectionDecoder) memorySection() error {
	count, err := s.r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		memory, err := s.readMemoryType()
		if err != nil {
			return err
		}
		if err := emit(s.h, &MemoryEntry{Memory: memory}); err != nil {
			return err
		}
	}
	return nil
}

func (s *sectionDecoder) tagSection() error {
	count, err := s.r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if err := s.skipTagType(); err != nil {
			return err
		}
	}
	return nil
}

func (s *sectionDecoder) globalSection() error {
	count, err := s.r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		globalType, err := s.readGlobalType()
		if err != nil {
			return err
		}
		if err := emit(s.h, &BeginGlobalEntry{Type: globalType}); err != nil {
			return err
		}
		expr, err := readConstExpr(s.r)
		if err != nil {
			return err
		}
		if err := emit(s.h, &InitExpr{Expr: expr}); err != nil {
			return err
		}
		if err := emit(s.h, &EndGlobalEntry{}); err != nil {
			return err
		}
	}
	return nil
}

func (s *sectionDecoder) exportSection() error {
	count, err := s.r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		name, err := s.r.ReadName()
		if err != nil {
			return err
		}
		kind, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		if kind > KindTag {
			return fmt.Errorf("invalid export kind: 0x%02x", kind)
		}
		idx, err := s.r.ReadU32()
		if err != nil {
			return err
		}
		if err := emit(s.h, &ExportEntry{Export: Export{Name: name, Kind: kind, Idx: idx}}); err != nil {
			return err
		}
	}
	return nil
}

func (s *sectionDecoder) startSection() error {
	idx, err := s.r.ReadU32()
	if err != nil {
		return err
	}
	return emit(s.h, &StartEntry{FuncIdx: idx})
}

func (s *sectionDecoder) elementSection() error {
	count, err := s.r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		flags, err := s.r.ReadU32()
		if err != nil {
			return err
		}
		if flags > 7 {
			return fmt.Errorf("invalid element segment flags: %d", flags)
		}

		elem := Element{Flags: flags}

		// Bit 0: passive/declarative (no table index or offset)
		// Bit 1: explicit table index (active) or elemkind/reftype present
		// Bit 2: expressions instead of function indices
		hasTableIdx := flags&0x02 != 0 && flags&0x01 == 0
		hasOffset := flags&0x01 == 0
		usesExprs := flags&0x04 != 0

		if hasTableIdx {
			if elem.TableIdx, err = s.r.ReadU32(); err != nil {
				return err
			}
		}
		if hasOffset {
			if elem.Offset, err = s.rawConstExpr(); err != nil {
				return err
			}
		}

		// Flags 1, 2, 3: elemkind follows; flags 5, 6, 7: reftype follows
		if flags&0x03 != 0 {
			if usesExprs {
				t, err := s.readValType()
				if err != nil {
					return err
				}
				elem.Type = t
			} else if elem.ElemKind, err = s.r.ReadByte(); err != nil {
				return err
			}
		}

		vecCount, err := s.r.ReadU32()
		if err != nil {
			return err
		}
		if usesExprs {
			elem.Exprs = make([][]byte, vecCount)
			for j := uint32(0); j < vecCount; j++ {
				if elem.Exprs[j], err = s.rawConstExpr(); err != nil {
					return err
				}
			}
		} else {
			elem.FuncIdxs = make([]uint32, vecCount)
			for j := uint32(0); j < vecCount; j++ {
				if elem.FuncIdxs[j], err = s.r.ReadU32(); err != nil {
					return err
				}
			}
		}

		if err := emit(s.h, &ElementEntry{Element: elem}); err != nil {
			return err
		}
	}
	return nil
}

// codeSection skips function bodies; they carry no declarations.
func (s *sectionDecoder) codeSection() error {
	count, err := s.r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		bodySize, err := s.r.ReadU32()
		if err != nil {
			return err
		}
		if err := s.r.Skip(int(bodySize)); err != nil {
			return fmt.Errorf("function body %d: %w", i, err)
		}
	}
	return nil
}

func (s *sectionDecoder) dataSection() error {
	count, err := s.r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		flags, err := s.r.ReadU32()
		if err != nil {
			return err
		}

		// flags=0: active, memIdx=0, offset, data
		// flags=1: passive, data only
		// flags=2: active, memIdx, offset, data
		switch flags {
		case 0, 2:
			var memIdx uint32
			if flags == 2 {
				if memIdx, err = s.r.ReadU32(); err != nil {
					return err
				}
			}
			if err := emit(s.h, &BeginActiveDataEntry{MemIdx: memIdx}); err != nil {
				return err
			}
			expr, err := readConstExpr(s.r)
			if err != nil {
				return err
			}
			if err := emit(s.h, &InitExpr{Expr: expr}); err != nil {
				return err
			}
		case 1:
			if err := emit(s.h, &BeginPassiveDataEntry{}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("invalid data segment flags: %d", flags)
		}

		size, err := s.r.ReadU32()
		if err != nil {
			return err
		}
		body, err := s.r.ReadBytes(int(size))
		if err != nil {
			return err
		}
		for off := 0; off < len(body); off += s.chunk {
			end := min(off+s.chunk, len(body))
			if err := emit(s.h, &DataBodyChunk{Data: body[off:end]}); err != nil {
				return err
			}
		}

		if err := emit(s.h, &EndDataEntry{}); err != nil {
			return err
		}
	}
	return nil
}

// rawConstExpr decodes a constant expression and returns its encoded bytes.
func (s *sectionDecoder) rawConstExpr() ([]byte, error) {
	start := s.r.Position() - s.base
	if _, err := readConstExpr(s.r); err != nil {
		return nil, err
	}
	end := s.r.Position() - s.base
	return append([]byte(nil), s.payload[start:end]...), nil
}

func (s *sectionDecoder) readValType() (ValType, error) {
	b, err := s.r.ReadByte()
	if err != nil {
		return 0, err
	}
	// (ref null ht) and (ref ht) carry a heap type immediate
	if b == byte(ValRefNull) || b == byte(ValRef) {
		if _, err := s.r.ReadS64(); err != nil {
			return 0, err
		}
	}
	return ValType(b), nil
}

func (s *sectionDecoder) readValTypes() ([]ValType, error) {
	count, err := s.r.ReadU32()
	if err != nil {
		return nil, err
	}
	if int(count) > s.r.Len() {
		return nil, fmt.Errorf("value type count %d exceeds section size", count)
	}
	types := make([]ValType, count)
	for i := range types {
		if types[i], err = s.readValType(); err != nil {
			return nil, err
		}
	}
	return types, nil
}

func (s *sectionDecoder) readLimits() (Limits, error) {
	flags, err := s.r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	if flags&^(LimitsHasMax|LimitsShared|LimitsMemory64) != 0 {
		return Limits{}, fmt.Errorf("invalid limits flags 0x%02x", flags)
	}

	l := Limits{
		Shared:   flags&LimitsShared != 0,
		Memory64: flags&LimitsMemory64 != 0,
	}

	if l.Memory64 {
		if l.Min, err = s.r.ReadU64(); err != nil {
			return Limits{}, err
		}
		if flags&LimitsHasMax != 0 {
			maxVal, err := s.r.ReadU64()
			if err != nil {
				return Limits{}, err
			}
			l.Max = &maxVal
		}
	} else {
		minVal, err := s.r.ReadU32()
		if err != nil {
			return Limits{}, err
		}
		l.Min = uint64(minVal)
		if flags&LimitsHasMax != 0 {
			maxVal, err := s.r.ReadU32()
			if err != nil {
				return Limits{}, err
			}
			max64 := uint64(maxVal)
			l.Max = &max64
		}
	}

	if l.Max != nil && l.Min > *l.Max {
		return Limits{}, fmt.Errorf("limits min (%d) exceeds max (%d)", l.Min, *l.Max)
	}
	return l, nil
}

func (s *sectionDecoder) readTableType() (TableType, error) {
	first, err := s.r.ReadByte()
	if err != nil {
		return TableType{}, err
	}

	// Table with init expression: 0x40 0x00 reftype limits expr
	if first == 0x40 {
		zero, err := s.r.ReadByte()
		if err != nil {
			return TableType{}, err
		}
		if zero != 0x00 {
			return TableType{}, fmt.Errorf("expected 0x00 after 0x40, got 0x%02x", zero)
		}
		elemType, err := s.readValType()
		if err != nil {
			return TableType{}, err
		}
		limits, err := s.readLimits()
		if err != nil {
			return TableType{}, err
		}
		if _, err := readConstExpr(s.r); err != nil {
			return TableType{}, err
		}
		return TableType{ElemType: elemType, Limits: limits}, nil
	}

	if first == byte(ValRefNull) || first == byte(ValRef) {
		if _, err := s.r.ReadS64(); err != nil {
			return TableType{}, err
		}
	}
	limits, err := s.readLimits()
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: ValType(first), Limits: limits}, nil
}

func (s *sectionDecoder) readMemoryType() (MemoryType, error) {
	limits, err := s.readLimits()
	if err != nil {
		return MemoryType{}, err
	}
	return MemoryType{Limits: limits}, nil
}

func (s *sectionDecoder) readGlobalType() (GlobalType, error) {
	valType, err := s.readValType()
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := s.r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, fmt.Errorf("invalid global mutability 0x%02x", mut)
	}
	return GlobalType{ValType: valType, Mutable: mut == 1}, nil
}

func (s *sectionDecoder) skipTagType() error {
	if _, err := s.r.ReadByte(); err != nil {
		return err
	}
	_, err := s.r.ReadU32()
	return err
}
