package bf

// InputMode selects how the input command is compiled.
type InputMode uint8

const (
	// InputRead calls the imported read function and stores its result.
	InputRead InputMode = iota
	// InputZero stores 0 and imports nothing.
	InputZero
)

func (m InputMode) String() string {
	if m == InputZero {
		return "zero"
	}
	return "read"
}

// Default import and export names.
const (
	DefaultImportModule = "js"
	DefaultPrintName    = "print_charcode"
	DefaultReadName     = "read_charcode"
	DefaultMemoryPages  = 1
	MainExportName      = "main"
	MemoryExportName    = "memory"
)

// Options controls parsing and code generation. The zero value is usable:
// empty names and a zero page count fall back to the defaults.
type Options struct {
	// ImportModule is the module name of the print and read imports.
	ImportModule string
	// PrintName is the field name of the imported (i32) -> () print function.
	PrintName string
	// ReadName is the field name of the imported () -> (i32) read function.
	// It is only imported when the program reads input.
	ReadName string
	// MemoryPages is both the minimum and maximum size of the tape memory
	// in 64 KiB pages.
	MemoryPages uint32
	// ExportMemory exports the tape memory as "memory".
	ExportMemory bool
	// ExportMain exports the start function as "main".
	ExportMain bool
	// Strict rejects any character that is neither a command nor
	// whitespace.
	Strict bool
	// Optimize folds runs of + - > < into a single add or sub.
	Optimize bool
	// Input selects how , is compiled.
	Input InputMode
}

// DefaultOptions returns the options used by the bfc command.
func DefaultOptions() Options {
	return Options{
		ImportModule: DefaultImportModule,
		PrintName:    DefaultPrintName,
		ReadName:     DefaultReadName,
		MemoryPages:  DefaultMemoryPages,
		ExportMemory: true,
	}
}

func (o Options) withDefaults() Options {
	if o.ImportModule == "" {
		o.ImportModule = DefaultImportModule
	}
	if o.PrintName == "" {
		o.PrintName = DefaultPrintName
	}
	if o.ReadName == "" {
		o.ReadName = DefaultReadName
	}
	if o.MemoryPages == 0 {
		o.MemoryPages = DefaultMemoryPages
	}
	return o
}
