package loader

import "io"

// Source is a byte stream that can be read sequentially and rewound. Both
// probing and loading work against it; an *os.File satisfies it directly.
type Source interface {
	io.Reader
	io.Seeker
}

// Format is a pluggable file-format recognizer and loader. CanLoad must
// leave src positioned at offset 0 whether it returns true or false — the
// registry relies on this to try the next format cleanly.
type Format interface {
	CanLoad(src Source) bool
	Load(src Source) (*MemoryMap, error)
}

// registry is the small static list of known formats. ELF is the only
// required entry; additional formats plug in by appending here.
var registry = []Format{
	&ElfFormat{},
}

// Probe returns the first registered format whose CanLoad predicate accepts
// src, or false if none recognize it.
func Probe(src Source) (Format, bool) {
	for _, f := range registry {
		if f.CanLoad(src) {
			return f, true
		}
	}
	return nil, false
}

// Load delegates to the given format, returning the MemoryMap it builds.
func Load(f Format, src Source) (*MemoryMap, error) {
	return f.Load(src)
}
