package glue

import (
	"bufio"
	stderrors "errors"
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/wavm-glue/errors"
	"github.com/wippyai/wavm-glue/wasm"
)

// Convert decodes the module in data, writes the glue header to header and
// the precompiled object, if present, to object. object may be nil.
//
// Any error aborts the conversion; whatever was written to the sinks must
// then be discarded. Decoder failures are reported with KindDecoderError.
func Convert(data []byte, header, object io.Writer, cfg Config) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}

	bw := bufio.NewWriter(header)
	b := NewBuilder(bw, object, cfg)
	dec := &wasm.Decoder{ChunkSize: cfg.ChunkSize}

	if err := dec.Decode(data, b); err != nil {
		var ge *errors.Error
		if stderrors.As(err, &ge) {
			return b.Summary(), err
		}
		return b.Summary(), errors.DecoderError(err)
	}
	if !b.Done() {
		return b.Summary(), errors.InvalidInput(errors.PhaseDecode, "module ended without end marker")
	}
	if err := bw.Flush(); err != nil {
		return b.Summary(), errors.IO(errors.PhaseEmit, "header", err)
	}

	s := b.Summary()
	Logger().Info("glue generated",
		zap.String("module", cfg.ModuleName),
		zap.Int("types", s.Types),
		zap.Int("imports", s.Imports),
		zap.Int("functions", s.Functions),
		zap.Int("exports", len(s.Exports)),
		zap.Int("tables", s.Tables),
		zap.Int("memories", s.Memories),
		zap.Int("globals", s.Globals),
		zap.Int("data_segments", s.DataSegments),
		zap.Bool("object", s.ObjectFound),
		zap.Int("object_size", s.ObjectSize),
		zap.Bool("main", s.HasMain))
	return s, nil
}
