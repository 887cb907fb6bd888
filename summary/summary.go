// Package summary turns a decoded boot information region into a
// plain, serializable snapshot: what the loader passed, digested and
// stripped of pointers into the region. Snapshots marshal to
// deterministic CBOR, so the same region always produces identical
// bytes; that makes them usable as fingerprints in boot attestation
// logs and as golden files in loader tests.
package summary

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"

	"github.com/YtvwlD/multiboot2/mbi"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical data always
// produces identical bytes.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR.
// Unknown fields are silently ignored for forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("summary: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("summary: CBOR decoder initialization failed: " + err.Error())
	}
}

// Options configures Capture.
type Options struct {
	// Logger receives a warning for every part of the region Capture
	// skips because it would not decode, and a debug line for each tag
	// type recorded without deep decoding. Nil disables logging.
	Logger *logrus.Logger
}

// Info is the snapshot of one boot information region.
type Info struct {
	// TotalSize is the region size declared by its fixed header.
	TotalSize uint32 `cbor:"total_size"`

	// Digest is the hex SHA-256 of the raw region.
	Digest string `cbor:"digest"`

	// Tags lists every tag in stream order, unknown types included.
	Tags []TagInfo `cbor:"tags"`

	BootLoader      string        `cbor:"boot_loader,omitempty"`
	CommandLine     string        `cbor:"command_line,omitempty"`
	MemoryLowerKiB  uint32        `cbor:"memory_lower_kib,omitempty"`
	MemoryUpperKiB  uint32        `cbor:"memory_upper_kib,omitempty"`
	Modules         []Module      `cbor:"modules,omitempty"`
	MemoryMap       []MemoryRange `cbor:"memory_map,omitempty"`
	EFIMemoryMap    []EFIRange    `cbor:"efi_memory_map,omitempty"`
	EFIBootServices bool          `cbor:"efi_boot_services,omitempty"`
	Framebuffer     *Framebuffer  `cbor:"framebuffer,omitempty"`
	Smbios          *Smbios       `cbor:"smbios,omitempty"`
	ElfSections     *ElfSections  `cbor:"elf_sections,omitempty"`
}

// TagInfo records the presence of one tag.
type TagInfo struct {
	Type uint32 `cbor:"type"`
	Name string `cbor:"name"`
	Size uint32 `cbor:"size"`
}

// Module records one boot module.
type Module struct {
	Start   uint32 `cbor:"start"`
	End     uint32 `cbor:"end"`
	Cmdline string `cbor:"cmdline,omitempty"`
}

// MemoryRange records one memory map area with its raw type code.
type MemoryRange struct {
	Base   uint64 `cbor:"base"`
	Length uint64 `cbor:"length"`
	Type   uint32 `cbor:"type"`
}

// EFIRange records one EFI memory descriptor with its raw type code.
type EFIRange struct {
	Phys      uint64 `cbor:"phys"`
	Virt      uint64 `cbor:"virt"`
	Pages     uint64 `cbor:"pages"`
	Attribute uint64 `cbor:"attribute"`
	Type      uint32 `cbor:"type"`
}

// Framebuffer records the framebuffer geometry. Kind is "indexed",
// "rgb" or "text"; a variant this package does not know keeps the
// stringified unknown code.
type Framebuffer struct {
	Address uint64 `cbor:"address"`
	Pitch   uint32 `cbor:"pitch"`
	Width   uint32 `cbor:"width"`
	Height  uint32 `cbor:"height"`
	BPP     uint8  `cbor:"bpp"`
	Kind    string `cbor:"kind"`
	Palette int    `cbor:"palette,omitempty"`
}

// Smbios records the SMBIOS revision and table payload size.
type Smbios struct {
	Major      uint8 `cbor:"major"`
	Minor      uint8 `cbor:"minor"`
	TableBytes int   `cbor:"table_bytes"`
}

// ElfSections records the section table geometry.
type ElfSections struct {
	Count            int    `cbor:"count"`
	EntrySize        uint32 `cbor:"entry_size"`
	StringTableIndex uint32 `cbor:"string_table_index"`
}

// Capture walks the region behind bi and snapshots everything it can
// decode. Parts that fail to decode are logged and skipped rather than
// failing the capture: one bad tag should not hide the rest of what
// the loader said.
func Capture(bi *mbi.BootInformation, opts Options) *Info {
	sum := sha256.Sum256(bi.Bytes())
	info := &Info{
		TotalSize: bi.TotalSize(),
		Digest:    hex.EncodeToString(sum[:]),
	}

	it := bi.Tags()
	for {
		tag, ok := it.Next()
		if !ok {
			break
		}
		info.Tags = append(info.Tags, TagInfo{
			Type: uint32(tag.Type()),
			Name: tag.Type().String(),
			Size: tag.Size(),
		})
		switch tag.Type() {
		case mbi.TagTypeBootLoaderName, mbi.TagTypeCommandLine,
			mbi.TagTypeBasicMemoryInfo, mbi.TagTypeModule,
			mbi.TagTypeMemoryMap, mbi.TagTypeEFIMemoryMap,
			mbi.TagTypeEFIBS, mbi.TagTypeFramebuffer,
			mbi.TagTypeSmbios, mbi.TagTypeElfSections:
			// captured below via the typed accessors
		default:
			debugf(opts, "recording %s tag without decoding it", tag.Type())
		}
	}

	if t, err := bi.BootLoaderNameTag(); t != nil {
		if name, nerr := t.Name(); nerr == nil {
			info.BootLoader = name
		} else {
			warnf(opts, "skipping boot loader name: %v", nerr)
		}
	} else if err != nil {
		warnf(opts, "skipping boot loader name tag: %v", err)
	}

	if t, err := bi.CommandLineTag(); t != nil {
		if cmdline, cerr := t.CommandLine(); cerr == nil {
			info.CommandLine = cmdline
		} else {
			warnf(opts, "skipping command line: %v", cerr)
		}
	} else if err != nil {
		warnf(opts, "skipping command line tag: %v", err)
	}

	if t, err := bi.BasicMemoryInfoTag(); t != nil {
		info.MemoryLowerKiB = t.MemoryLower()
		info.MemoryUpperKiB = t.MemoryUpper()
	} else if err != nil {
		warnf(opts, "skipping basic memory info tag: %v", err)
	}

	mods := bi.ModuleTags()
	for {
		m, ok := mods.Next()
		if !ok {
			break
		}
		mod := Module{Start: m.StartAddress(), End: m.EndAddress()}
		if cmdline, err := m.Cmdline(); err == nil {
			mod.Cmdline = cmdline
		} else {
			warnf(opts, "dropping cmdline of module at %#x: %v", m.StartAddress(), err)
		}
		info.Modules = append(info.Modules, mod)
	}
	if err := mods.Err(); err != nil {
		warnf(opts, "skipped at least one module tag: %v", err)
	}

	if t, err := bi.MemoryMapTag(); t != nil {
		for _, a := range t.Areas() {
			info.MemoryMap = append(info.MemoryMap, MemoryRange{
				Base:   a.BaseAddr,
				Length: a.Length,
				Type:   uint32(a.Type),
			})
		}
	} else if err != nil {
		warnf(opts, "skipping memory map tag: %v", err)
	}

	if t, err := bi.EFIMemoryMapTag(); t != nil {
		for _, d := range t.Descriptors() {
			info.EFIMemoryMap = append(info.EFIMemoryMap, EFIRange{
				Phys:      d.PhysAddr,
				Virt:      d.VirtAddr,
				Pages:     d.PageCount,
				Attribute: d.Attribute,
				Type:      uint32(d.Type),
			})
		}
	} else if err != nil {
		warnf(opts, "skipping efi memory map tag: %v", err)
	}

	info.EFIBootServices = bi.EFIBootServicesNotExited()

	if t, err := bi.FramebufferTag(); t != nil {
		info.Framebuffer = captureFramebuffer(t, opts)
	} else if err != nil {
		warnf(opts, "skipping framebuffer tag: %v", err)
	}

	if t, err := bi.SmbiosTag(); t != nil {
		info.Smbios = &Smbios{Major: t.Major(), Minor: t.Minor(), TableBytes: len(t.Tables())}
	} else if err != nil {
		warnf(opts, "skipping smbios tag: %v", err)
	}

	if t, err := bi.ElfSectionsTag(); t != nil {
		info.ElfSections = &ElfSections{
			Count:            t.SectionCount(),
			EntrySize:        t.EntrySize(),
			StringTableIndex: t.StringTableIndex(),
		}
	} else if err != nil {
		warnf(opts, "skipping elf sections tag: %v", err)
	}

	return info
}

func captureFramebuffer(t *mbi.FramebufferTag, opts Options) *Framebuffer {
	fb := &Framebuffer{
		Address: t.Address(),
		Pitch:   t.Pitch(),
		Width:   t.Width(),
		Height:  t.Height(),
		BPP:     t.BPP(),
	}
	bt, err := t.BufferType()
	switch v := bt.(type) {
	case mbi.FramebufferIndexed:
		fb.Kind = "indexed"
		fb.Palette = len(v.Palette)
	case mbi.FramebufferRGB:
		fb.Kind = "rgb"
	case mbi.FramebufferText:
		fb.Kind = "text"
	default:
		warnf(opts, "framebuffer variant not decoded: %v", err)
		var uv *mbi.UnknownVariantError
		if errors.As(err, &uv) {
			fb.Kind = "unknown(" + strconv.Itoa(int(uv.Code)) + ")"
		} else {
			fb.Kind = "undecoded"
		}
	}
	return fb
}

// Marshal encodes a snapshot to deterministic CBOR.
func Marshal(info *Info) ([]byte, error) {
	return encMode.Marshal(info)
}

// Unmarshal decodes a snapshot from CBOR.
func Unmarshal(data []byte, info *Info) error {
	return decMode.Unmarshal(data, info)
}

func warnf(opts Options, format string, args ...any) {
	if opts.Logger != nil {
		opts.Logger.Warnf(format, args...)
	}
}

func debugf(opts Options, format string, args ...any) {
	if opts.Logger != nil {
		opts.Logger.Debugf(format, args...)
	}
}
