package verify

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wavm-glue/errors"
	"github.com/wippyai/wavm-glue/glue"
)

// Config holds configuration for a check.
type Config struct {
	// Section names the precompiled object section. Empty means
	// glue.DefaultPrecompiledSection.
	Section string

	// MemoryLimitPages caps the memory wazero accepts, in 64KiB pages.
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// Import is an imported function as seen by wazero.
type Import struct {
	Module  string
	Name    string
	Params  []string
	Results []string
}

// Memory is an imported or exported memory as seen by wazero.
type Memory struct {
	Max      *uint32
	Name     string
	Min      uint32
	Imported bool
}

// Section is a custom section as seen by wazero.
type Section struct {
	Name string
	Size int
}

// Report is what wazero extracted from a compiled module.
type Report struct {
	Imports        []Import
	Exports        []string
	Memories       []Memory
	CustomSections []Section

	section string
	objects [][]byte
}

// Check compiles data with wazero and reports its ABI surface.
func Check(ctx context.Context, data []byte) (*Report, error) {
	return CheckWithConfig(ctx, data, nil)
}

// CheckWithConfig compiles data with wazero using custom configuration.
func CheckWithConfig(ctx context.Context, data []byte, cfg *Config) (*Report, error) {
	runtimeCfg := wazero.NewRuntimeConfig().WithCustomSections(true)
	section := glue.DefaultPrecompiledSection
	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.Section != "" {
			section = cfg.Section
		}
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	defer runtime.Close(ctx)

	compiled, err := runtime.CompileModule(ctx, data)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseVerify, errors.KindInvalidInput, err, "wazero rejected module")
	}
	defer compiled.Close(ctx)

	r := &Report{section: section}

	for _, fn := range compiled.ImportedFunctions() {
		module, name, _ := fn.Import()
		r.Imports = append(r.Imports, Import{
			Module:  module,
			Name:    name,
			Params:  typeNames(fn.ParamTypes()),
			Results: typeNames(fn.ResultTypes()),
		})
	}

	for name := range compiled.ExportedFunctions() {
		r.Exports = append(r.Exports, name)
	}
	slices.Sort(r.Exports)

	for _, mem := range compiled.ImportedMemories() {
		module, name, _ := mem.Import()
		r.Memories = append(r.Memories, memory(module+"."+name, mem, true))
	}
	exported := compiled.ExportedMemories()
	names := make([]string, 0, len(exported))
	for name := range exported {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		r.Memories = append(r.Memories, memory(name, exported[name], false))
	}

	for _, cs := range compiled.CustomSections() {
		r.CustomSections = append(r.CustomSections, Section{Name: cs.Name(), Size: len(cs.Data())})
		if cs.Name() == section {
			r.objects = append(r.objects, cs.Data())
		}
	}

	Logger().Debug("module verified",
		zap.Int("imports", len(r.Imports)),
		zap.Int("exports", len(r.Exports)),
		zap.Int("memories", len(r.Memories)),
		zap.Int("custom_sections", len(r.CustomSections)))
	return r, nil
}

// Compare cross-checks a conversion summary and the extracted object against
// the report.
func (r *Report) Compare(summary glue.Summary, object []byte) error {
	if len(r.Imports) != summary.Imports {
		return mismatch("imported functions: wazero sees %d, glue emitted %d", len(r.Imports), summary.Imports)
	}

	exports := slices.Clone(summary.Exports)
	slices.Sort(exports)
	exports = slices.Compact(exports)
	if !slices.Equal(r.Exports, exports) {
		return mismatch("exported functions: wazero sees %v, glue emitted %v", r.Exports, exports)
	}

	switch {
	case len(r.objects) > 1:
		return mismatch("section %q appears %d times", r.section, len(r.objects))
	case len(r.objects) == 0 && summary.ObjectFound:
		return mismatch("glue extracted section %q that wazero does not see", r.section)
	case len(r.objects) == 1 && !summary.ObjectFound:
		return mismatch("section %q was not extracted", r.section)
	case len(r.objects) == 1 && !bytes.Equal(r.objects[0], object):
		return mismatch("extracted object differs from section %q (%d vs %d bytes)", r.section, len(object), len(r.objects[0]))
	}
	return nil
}

func mismatch(format string, args ...any) error {
	return errors.New(errors.PhaseVerify, errors.KindInvalidInput).
		Detail(format, args...).
		Build()
}

func memory(name string, def api.MemoryDefinition, imported bool) Memory {
	m := Memory{Name: name, Min: def.Min(), Imported: imported}
	if limit, ok := def.Max(); ok {
		m.Max = &limit
	}
	return m
}

func typeNames(types []api.ValueType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return names
}

func (m Memory) String() string {
	if m.Max != nil {
		return fmt.Sprintf("%s min=%d max=%d", m.Name, m.Min, *m.Max)
	}
	return fmt.Sprintf("%s min=%d", m.Name, m.Min)
}
