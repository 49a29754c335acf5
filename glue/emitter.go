package glue

import (
	"fmt"
	"io"
	"strconv"

	"github.com/wippyai/wavm-glue/errors"
)

// ABI placeholders that this generator never computes.
var placeholders = []string{"functionDefMutableData", "biasedInstanceId", "tableReferenceBias"}

// Emitter writes header text to an append-only sink. The first write error
// is kept and every later write becomes a no-op.
type Emitter struct {
	w            io.Writer
	err          error
	buf          []byte
	bytesPerLine int
}

// NewEmitter creates an Emitter. bytesPerLine groups memory literals.
func NewEmitter(w io.Writer, bytesPerLine int) *Emitter {
	if bytesPerLine <= 0 {
		bytesPerLine = DefaultBytesPerLine
	}
	return &Emitter{w: w, bytesPerLine: bytesPerLine}
}

// Err returns the first write error.
func (e *Emitter) Err() error {
	return e.err
}

func (e *Emitter) write(p []byte) {
	if e.err != nil {
		return
	}
	if _, err := e.w.Write(p); err != nil {
		e.err = errors.IO(errors.PhaseEmit, "header", err)
	}
}

func (e *Emitter) printf(format string, args ...any) {
	e.buf = fmt.Appendf(e.buf[:0], format, args...)
	e.write(e.buf)
}

// Prologue writes the includes, the include guard, the return wrappers and
// the ABI placeholder constants.
func (e *Emitter) Prologue(guard string) {
	e.printf("#include<stddef.h>\n#include<stdint.h>\n\n#ifndef %s\n#define %s\n\n", guard, guard)
	for _, s := range Scalars {
		e.printf("typedef struct {\n  void* dummy;\n  %s value;\n} %s;\n\n", s, s.ReturnWrapper())
	}
	for _, name := range placeholders {
		e.printf("const uint64_t %s = 0;\n", name)
	}
	e.printf("\n")
}

// TypeID declares the id constant of type idx.
func (e *Emitter) TypeID(idx uint32) {
	e.printf("const uint64_t typeId%d = 0;\n", idx)
}

// ImportedFunction aliases the conventional import name to its symbol and
// declares the symbol.
func (e *Emitter) ImportedFunction(alias, symbol, decl string) {
	e.printf("#define %s %s\nextern %s;\n", alias, symbol, decl)
}

// LocalFunction declares local function idx and its mutable-data marker.
func (e *Emitter) LocalFunction(idx uint32, decl string) {
	e.printf("extern %s;\nconst uint64_t functionDefMutableDatas%d = 0;\n", decl, idx)
}

// ExportedFunction aliases an export to the local function symbol.
func (e *Emitter) ExportedFunction(alias string, local uint32) {
	e.printf("#define %s functionDef%d\n", alias, local)
}

// Table defines zero-filled storage for table idx.
func (e *Emitter) Table(idx uint32, elems uint64) {
	e.printf("uintptr_t table%d[%d] = { 0 };\nuintptr_t* tableOffset%d = table%d;\n", idx, elems, idx, idx)
}

// Global defines global idx.
func (e *Emitter) Global(idx uint32, constant bool, typ Scalar, value string) {
	qualifier := ""
	if constant {
		qualifier = "const "
	}
	e.printf("%s%s global%d = %s;\n", qualifier, typ, idx, value)
}

// Memory defines memory idx. The declared length is the full image size; the
// initializer omits trailing zero bytes.
func (e *Emitter) Memory(idx uint32, img *MemoryImage) {
	e.printf("uint32_t memory%d_length = %d;\n", idx, img.Len())
	e.printf("uint8_t memory%d[%d] = {", idx, img.Len())

	literal := img.Trimmed()
	e.buf = e.buf[:0]
	for i, c := range literal {
		if i%e.bytesPerLine == 0 {
			e.buf = append(e.buf, "\n  "...)
		}
		e.buf = append(e.buf, "0x"...)
		e.buf = strconv.AppendUint(e.buf, uint64(c), 16)
		if i < len(literal)-1 {
			e.buf = append(e.buf, ", "...)
		}
		if len(e.buf) >= 64*1024 {
			e.write(e.buf)
			e.buf = e.buf[:0]
		}
	}
	e.buf = append(e.buf, "};\n"...)
	e.write(e.buf)

	e.printf("uint8_t* memoryOffset%d = memory%d;\n", idx, idx)
	e.printf("#define MEMORY%d_DEFINED 1\n", idx)
}

// Main writes a main function that calls the entry point alias.
func (e *Emitter) Main(entryAlias string) {
	e.printf("\nint main() {\n  %s(NULL);\n  // This should not be reached\n  return -1;\n}\n", entryAlias)
}

// Epilogue closes the include guard.
func (e *Emitter) Epilogue(guard string) {
	e.printf("\n#endif /* %s */\n", guard)
}
