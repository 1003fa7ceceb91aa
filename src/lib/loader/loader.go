package loader

import (
	"bytes"
	"debug/elf"
	"fmt"

	"equanimity/src/lib/trust"
)

type LoaderError int

const LoaderNoError LoaderError = 0
const LoaderAppNotFound LoaderError = -1
const LoaderCannotAttachElf LoaderError = -2
const LoaderBadMachine LoaderError = -3
const LoaderNoLoadableSegment LoaderError = -4
const LoaderDuplicateApp LoaderError = -5

func (e LoaderError) Error() string {
	return e.String()
}

func (e LoaderError) String() string {
	switch e {
	case 0:
		return "LoaderNoError"
	case -1:
		return "LoaderAppNotFound"
	case -2:
		return "LoaderCannotAttachElf"
	case -3:
		return "LoaderBadMachine"
	case -4:
		return "LoaderNoLoadableSegment"
	case -5:
		return "LoaderDuplicateApp"
	default:
		return "unknown loader error code"
	}
}

// App is one application image linked into the kernel.
type App struct {
	Name string
	ELF  []byte
}

// Loader is the list of application images the kernel boots with, in
// the order they are turned into tasks.
type Loader struct {
	apps   []App
	logger *trust.Logger
}

func NewLoader(apps ...App) (*Loader, error) {
	l := &Loader{logger: trust.NewLogger("loader")}
	seen := make(map[string]bool)
	for _, a := range apps {
		if seen[a.Name] {
			return nil, fmt.Errorf("%s: %w", a.Name, LoaderDuplicateApp)
		}
		seen[a.Name] = true
		if err := Check(a.ELF); err != LoaderNoError {
			return nil, fmt.Errorf("%s: %w", a.Name, err)
		}
		l.apps = append(l.apps, a)
	}
	l.logger.Debugf("num_app = %d", len(l.apps))
	return l, nil
}

func (l *Loader) NumApp() int {
	return len(l.apps)
}

// AppData returns the raw image of the i'th app.
func (l *Loader) AppData(i int) []byte {
	return l.apps[i].ELF
}

func (l *Loader) AppName(i int) string {
	return l.apps[i].Name
}

func (l *Loader) AppDataByName(name string) ([]byte, LoaderError) {
	for _, a := range l.apps {
		if a.Name == name {
			return a.ELF, LoaderNoError
		}
	}
	return nil, LoaderAppNotFound
}

func (l *Loader) Names() []string {
	result := make([]string, len(l.apps))
	for i, a := range l.apps {
		result[i] = a.Name
	}
	return result
}

// Check does the cheap validation of an image: it must be a RISC-V ELF
// with at least one loadable segment.
func Check(image []byte) LoaderError {
	elfFile, err := elf.NewFile(bytes.NewReader(image))
	if err != nil {
		trust.Debugf("Error attaching elf reader: %v", err)
		return LoaderCannotAttachElf
	}
	if elfFile.Machine != elf.EM_RISCV || elfFile.Class != elf.ELFCLASS64 {
		return LoaderBadMachine
	}
	for _, p := range elfFile.Progs {
		if p.Type == elf.PT_LOAD {
			return LoaderNoError
		}
	}
	return LoaderNoLoadableSegment
}
