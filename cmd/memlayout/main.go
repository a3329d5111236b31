// Command memlayout inspects the DWARF debug info of a compiled binary and
// prints offset, size and padding for struct fields. Useful for spotting
// cache-line waste in hot types before putting them under the memprobe
// workloads.
package main

import (
	"debug/dwarf"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"flag"
	"fmt"
	"log"
	"strings"
)

var (
	binaryPath = flag.String("b", "", "Path to binary with DWARF debug info")
	typeFilter = flag.String("t", "", "Comma-separated substrings of struct type names to inspect")
)

// openDWARF returns DWARF data from ELF, Mach-O, or PE
func openDWARF(path string) (*dwarf.Data, error) {
	if f, err := elf.Open(path); err == nil {
		return f.DWARF()
	}
	if f, err := macho.Open(path); err == nil {
		return f.DWARF()
	}
	if f, err := pe.Open(path); err == nil {
		return f.DWARF()
	}
	return nil, fmt.Errorf("unsupported binary: %s", path)
}

func typeSize(d *dwarf.Data, typ dwarf.Type) int64 {
	switch t := typ.(type) {
	case *dwarf.IntType, *dwarf.UintType, *dwarf.FloatType,
		*dwarf.BoolType, *dwarf.AddrType, *dwarf.PtrType:
		return int64(t.Common().ByteSize)
	case *dwarf.StructType:
		return t.ByteSize
	case *dwarf.ArrayType:
		return t.ByteSize
	default:
		return 0 // fallback
	}
}

type field struct {
	name string
	off  int64
	size int64
}

func matchesAny(name string, filters []string) bool {
	for _, f := range filters {
		if strings.Contains(name, f) {
			return true
		}
	}
	return false
}

func main() {
	log.SetPrefix("memlayout: ")
	log.SetFlags(0)

	flag.Parse()
	if *binaryPath == "" {
		log.Fatal("-b must be provided")
	}
	if *typeFilter == "" {
		log.Fatal("-t must be provided")
	}

	var filters []string
	for _, f := range strings.Split(*typeFilter, ",") {
		if f = strings.TrimSpace(f); f != "" {
			filters = append(filters, f)
		}
	}

	d, err := openDWARF(*binaryPath)
	if err != nil {
		log.Fatalf("reading debug info: %v", err)
	}

	r := d.Reader()
	for {
		ent, err := r.Next()
		if err != nil || ent == nil {
			break
		}
		if ent.Tag != dwarf.TagStructType {
			continue
		}
		topName, _ := ent.Val(dwarf.AttrName).(string)
		if !matchesAny(topName, filters) {
			continue
		}

		var fields []field
		for {
			child, err := r.Next()
			if err != nil || child == nil {
				break
			}
			if child.Tag == 0 { // end of children
				break
			}
			if child.Tag == dwarf.TagMember {
				n, _ := child.Val(dwarf.AttrName).(string)
				off, _ := child.Val(dwarf.AttrDataMemberLoc).(int64)
				typOff, _ := child.Val(dwarf.AttrType).(dwarf.Offset)
				if typ, err := d.Type(typOff); err == nil {
					fields = append(fields, field{n, off, typeSize(d, typ)})
				}
			}
		}

		for i, f := range fields {
			var leftPad, rightPad int64
			if i > 0 {
				prev := fields[i-1]
				if prevEnd := prev.off + prev.size; f.off > prevEnd {
					leftPad = f.off - prevEnd
				}
			}
			if i+1 < len(fields) {
				next := fields[i+1]
				if end := f.off + f.size; next.off > end {
					rightPad = next.off - end
				}
			}
			fmt.Printf("%s.%s offset=%d size=%d leftPad=%d rightPad=%d\n",
				topName, f.name, f.off, f.size, leftPad, rightPad)
		}
	}
}
