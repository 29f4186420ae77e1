// Package byteweight finds likely function starts by scoring byte
// prefixes against a weighted signature table. A prefix trie stores
// how often each byte string started a function versus appeared
// elsewhere; the score of a candidate offset is the hit ratio at the
// deepest matching node.
package byteweight

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/karatemonkey63/bap-1/internal/image"
	"github.com/karatemonkey63/bap-1/internal/logging"
)

type node struct {
	hits, miss int
	next       map[byte]*node
}

// Table is a prefix trie of weighted byte signatures.
type Table struct {
	root node
}

func New() *Table { return &Table{} }

// Add records a signature with its hit and miss counts. The counts
// land on the node the full pattern ends at; prefixes of the pattern
// keep whatever counts other signatures gave them.
func (t *Table) Add(pattern []byte, hits, miss int) {
	n := &t.root
	for _, b := range pattern {
		if n.next == nil {
			n.next = make(map[byte]*node)
		}
		child := n.next[b]
		if child == nil {
			child = &node{}
			n.next[b] = child
		}
		n = child
	}
	n.hits += hits
	n.miss += miss
}

// Score walks the trie as deep as the given bytes allow and returns
// the hit ratio at the deepest node that carries counts. Bytes with
// no matching signature score zero.
func (t *Table) Score(b []byte) float64 {
	n := &t.root
	score := 0.0
	for _, c := range b {
		n = n.next[c]
		if n == nil {
			break
		}
		if total := n.hits + n.miss; total > 0 {
			score = float64(n.hits) / float64(total)
		}
	}
	return score
}

// FindStarts scans the executable regions of an image and returns the
// addresses whose prefix scores at least threshold, in ascending
// order. At most length bytes take part in each score. On arm64 the
// scan advances by instruction width.
func (t *Table) FindStarts(img *image.Image, length int, threshold float64) []uint64 {
	if length <= 0 || threshold <= 0 {
		return nil
	}
	step := uint64(1)
	if img.Arch == "arm64" {
		step = 4
	}
	var starts []uint64
	for _, seg := range img.ExecRegions() {
		end := seg.Off + seg.Size
		if end > uint64(len(img.All)) {
			end = uint64(len(img.All))
		}
		if seg.Off >= end {
			continue
		}
		data := img.All[seg.Off:end]
		size := uint64(len(data))
		for i := uint64(0); i < size; i += step {
			w := i + uint64(length)
			if w > size {
				w = size
			}
			if t.Score(data[i:w]) >= threshold {
				starts = append(starts, seg.VA+i)
			}
		}
	}
	slices.Sort(starts)

	if logging.IsDebug() {
		lg := logging.NewLogger()
		lg.Debug("byteweight scan finished",
			"starts", len(starts),
			"length", length,
			"threshold", threshold)
	}
	return starts
}

// Load reads a signature file: one signature per line in the form
// "<hex-bytes> <hits> <miss>". Blank lines and # comments are
// ignored.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sigs: %w", err)
	}
	defer f.Close()

	t := New()
	sc := bufio.NewScanner(f)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%s:%d: want \"<bytes> <hits> <miss>\", got %d fields", path, lineno, len(fields))
		}
		pattern, err := hex.DecodeString(fields[0])
		if err != nil || len(pattern) == 0 {
			return nil, fmt.Errorf("%s:%d: bad byte pattern %q", path, lineno, fields[0])
		}
		hits, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad hit count %q", path, lineno, fields[1])
		}
		miss, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad miss count %q", path, lineno, fields[2])
		}
		t.Add(pattern, hits, miss)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read sigs: %w", err)
	}
	return t, nil
}

// Default returns the built-in signature table covering the common
// arm64 and x86-64 prologue forms.
func Default() *Table {
	t := New()
	for _, s := range defaultSigs {
		pattern, err := hex.DecodeString(s.bytes)
		if err != nil {
			panic("byteweight: bad built-in signature " + s.bytes)
		}
		t.Add(pattern, s.hits, s.miss)
	}
	return t
}

var defaultSigs = []struct {
	bytes string
	hits  int
	miss  int
}{
	// arm64
	{"fd7b", 6045, 310},           // stp x29, x30, [sp, ...
	{"fd7bbfa9", 3412, 31},        // stp x29, x30, [sp, #-16]!
	{"fd7bbea9", 1260, 22},        // stp x29, x30, [sp, #-32]!
	{"fd7bbda9", 840, 17},         // stp x29, x30, [sp, #-48]!
	{"fd7bbca9", 533, 12},         // stp x29, x30, [sp, #-64]!
	{"fd7bbfa9fd030091", 2904, 3}, // stp then mov x29, sp
	{"ff4300d1", 708, 45},         // sub sp, sp, #16
	{"ff8300d1", 392, 28},         // sub sp, sp, #32
	{"ff0301d1", 246, 19},         // sub sp, sp, #64
	{"5f2403d5", 1904, 6},         // bti c
	{"7f2303d5", 911, 4},          // pacibsp

	// x86-64
	{"55", 2613, 1405},     // push rbp on its own proves little
	{"5548", 2306, 240},    // push rbp; rex...
	{"554889e5", 2178, 12}, // push rbp; mov rbp, rsp
	{"f30f1efa", 2406, 9},  // endbr64
	{"4883ec", 688, 161},   // sub rsp, imm8
	{"4157", 201, 38},      // push r15
	{"4156", 227, 41},      // push r14
	{"4155", 251, 45},      // push r13
	{"4154", 280, 52},      // push r12
}
