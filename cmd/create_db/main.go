// create_db -- synthetic populator for go-ckv files (component I).
//
// Grounded on the teacher's example/mphdb.go: a small flag-driven CLI around
// a DBWriter, using the teacher's own CLI dependency github.com/opencoff/pflag
// and dying/warning via the same os.Stderr helper style.
//
// (c) 2024 go-ckv contributors
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.
package main

import (
	"fmt"
	"os"

	"github.com/opencoff/go-ckv"
	flag "github.com/opencoff/pflag"
)

func main() {
	var (
		output     string
		count      int
		valueSize  int
		placement  string
		hasherName string
		cache      int
		bloom      bool
		trailer    bool
	)

	usage := fmt.Sprintf("%s --output PATH [options]", os.Args[0])

	flag.StringVarP(&output, "output", "o", "", "write the database to `PATH`")
	flag.IntVarP(&count, "count", "n", 1024, "write `N` synthetic records")
	flag.IntVarP(&valueSize, "value-size", "s", 1024, "pad each value to `S` bytes")
	flag.StringVarP(&placement, "placement", "p", "cuckoo", "index discipline: `cuckoo` or `linear`")
	flag.StringVarP(&hasherName, "hasher", "H", "siphash", "fingerprint function: `siphash` or `xxh3`")
	flag.IntVarP(&cache, "cache", "c", 0, "reader ARC cache size (unused by this tool; documents reader-side default)")
	flag.BoolVarP(&bloom, "bloom", "b", false, "append a bloom filter after the index table")
	flag.BoolVarP(&trailer, "trailer", "t", false, "append a SHA512-256 integrity trailer")
	flag.Usage = func() {
		fmt.Printf("create_db - populate a go-ckv file with synthetic records\nUsage: %s\n", usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if len(output) == 0 {
		die("no --output given\nUsage: %s", usage)
	}

	var opts []ckv.WriterOption

	switch placement {
	case "cuckoo":
		opts = append(opts, ckv.WithPlacement(ckv.Cuckoo))
	case "linear":
		opts = append(opts, ckv.WithPlacement(ckv.LinearProbe))
	default:
		die("unknown --placement %q (want cuckoo or linear)", placement)
	}

	switch hasherName {
	case "siphash":
		opts = append(opts, ckv.WithHasher(ckv.SipHasher{}))
	case "xxh3":
		opts = append(opts, ckv.WithHasher(ckv.XXH3Hasher{}))
	default:
		die("unknown --hasher %q (want siphash or xxh3)", hasherName)
	}

	if bloom {
		opts = append(opts, ckv.WithBloomFilter(true))
	}
	if trailer {
		opts = append(opts, ckv.WithIntegrityTrailer(true))
	}

	w, closeFn, err := ckv.OpenWriter(output, opts...)
	if err != nil {
		die("can't open %s: %s", output, err)
	}

	for i := 0; i < count; i++ {
		key := fmt.Sprintf("key-%06d", i)
		val := padValue(fmt.Sprintf("value-%06d", i), valueSize)
		if err := w.Append([]byte(key), val); err != nil {
			die("can't append record %d: %s", i, err)
		}
	}

	if err := closeFn(); err != nil {
		die("can't finalize %s: %s", output, err)
	}

	fmt.Printf("%s: wrote %d records\n", output, count)
}

// padValue pads s with trailing '_' bytes out to size, or truncates it if s
// is already longer.
func padValue(s string, size int) []byte {
	b := []byte(s)
	if len(b) >= size {
		return b[:size]
	}
	out := make([]byte, size)
	copy(out, b)
	for i := len(b); i < size; i++ {
		out[i] = '_'
	}
	return out
}

func die(f string, v ...interface{}) {
	warn(f, v...)
	os.Exit(1)
}

func warn(f string, v ...interface{}) {
	s := fmt.Sprintf(f, v...)
	if n := len(s); n == 0 || s[n-1] != '\n' {
		s += "\n"
	}
	fmt.Fprintf(os.Stderr, "%s: %s", os.Args[0], s)
}
