package user

import (
	"debug/elf"
	"errors"
	"fmt"
	"sort"
	"sync"

	"equanimity/src/lib/loader"
	"equanimity/src/mm"
)

// Program is the body of a user application. Its result is the exit code.
type Program func(e *Env) int32

// textMagic starts the text segment of every image built by Image; the
// program name follows it.
const textMagic = "\x7fequanimity:"

const maxNameLen = 64

// DataStart is a page of zeroed read/write memory every image carries.
const DataStart = loader.UserProcessLinkAddr + loader.PageSize

var ErrNoProgram = errors.New("no program at entry")

var (
	registryMu sync.Mutex
	registry   = map[string]Program{}
)

// Register makes p available under name. Names are unique.
func Register(name string, p Program) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		panic(fmt.Sprintf("program %q registered twice", name))
	}
	if len(name) > maxNameLen {
		panic(fmt.Sprintf("program name %q is too long", name))
	}
	registry[name] = p
}

func Lookup(name string) (Program, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	p, ok := registry[name]
	return p, ok
}

// Names lists the registered programs in order.
func Names() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Image is the ELF of the named program: a text segment holding the
// program's name and a data page.
func Image(name string) []byte {
	text := append([]byte(textMagic+name), 0)
	return loader.BuildELF(loader.UserProcessLinkAddr, []loader.Segment{
		{VAddr: loader.UserProcessLinkAddr, Flags: elf.PF_R | elf.PF_X, Data: text},
		{VAddr: DataStart, Flags: elf.PF_R | elf.PF_W, MemSize: loader.PageSize},
	})
}

// Apps builds a loader with the images of the named programs.
func Apps(names ...string) (*loader.Loader, error) {
	apps := make([]loader.App, 0, len(names))
	for _, n := range names {
		if _, ok := Lookup(n); !ok {
			return nil, fmt.Errorf("no program %q", n)
		}
		apps = append(apps, loader.App{Name: n, ELF: Image(n)})
	}
	return loader.NewLoader(apps...)
}

// Resolve finds the program whose text is at entry in the address space
// named by token. The page must be executable.
func Resolve(mem *mm.FrameAllocator, token, entry uint64) (Program, string, error) {
	head, err := mm.AccessUser(mem, token, entry, uint64(len(textMagic)), mm.PTERead|mm.PTEExec)
	if err != nil {
		return nil, "", err
	}
	if string(head.Bytes()) != textMagic {
		return nil, "", ErrNoProgram
	}
	name, err := mm.TranslatedStrSafe(mem, token, entry+uint64(len(textMagic)), maxNameLen)
	if err != nil {
		return nil, "", err
	}
	p, ok := Lookup(name)
	if !ok {
		return nil, name, fmt.Errorf("%w: %q is not registered", ErrNoProgram, name)
	}
	return p, name, nil
}
