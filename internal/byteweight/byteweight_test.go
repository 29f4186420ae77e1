package byteweight

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/karatemonkey63/bap-1/internal/image"
)

func TestScoreDeepestMatch(t *testing.T) {
	tbl := New()
	tbl.Add([]byte{0x55}, 1, 3)
	tbl.Add([]byte{0x55, 0x48}, 9, 1)
	tbl.Add([]byte{0x55, 0x48, 0x89, 0xe5}, 99, 1)

	tests := []struct {
		name string
		b    []byte
		want float64
	}{
		{name: "full prologue", b: []byte{0x55, 0x48, 0x89, 0xe5}, want: 0.99},
		{name: "two byte prefix", b: []byte{0x55, 0x48, 0x90, 0x90}, want: 0.9},
		{name: "one byte prefix", b: []byte{0x55, 0x90}, want: 0.25},
		{name: "no match", b: []byte{0x90}, want: 0},
		{name: "empty", b: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tbl.Score(tt.b); got != tt.want {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreSkipsCountlessNodes(t *testing.T) {
	tbl := New()
	tbl.Add([]byte{0x55, 0x48, 0x89, 0xe5}, 9, 1)

	// The walk reaches depth 2 but only the depth-4 node has counts.
	if got := tbl.Score([]byte{0x55, 0x48}); got != 0 {
		t.Errorf("Score = %v, want 0 for a prefix with no counted node", got)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigs")
	content := `# prologue signatures
554889e5 90 10

# trailing section
fd7bbfa9 99 1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tbl, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := tbl.Score([]byte{0x55, 0x48, 0x89, 0xe5}); got != 0.9 {
		t.Errorf("x86 signature score = %v, want 0.9", got)
	}
	if got := tbl.Score([]byte{0xfd, 0x7b, 0xbf, 0xa9}); got != 0.99 {
		t.Errorf("arm64 signature score = %v, want 0.99", got)
	}
}

func TestLoadRejectsMalformedLines(t *testing.T) {
	testCases := []struct {
		name string
		line string
	}{
		{name: "missing counts", line: "554889e5 90"},
		{name: "bad hex", line: "zz 1 2"},
		{name: "empty pattern", line: " 1 2 3"},
		{name: "bad hit count", line: "55 x 2"},
		{name: "bad miss count", line: "55 1 x"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sigs")
			if err := os.WriteFile(path, []byte(tc.line+"\n"), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("Load(%q) should fail", tc.line)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("Load of a missing file should fail")
	}
}

func TestFindStarts(t *testing.T) {
	tbl := New()
	tbl.Add([]byte{0x55, 0x48, 0x89, 0xe5}, 9, 1)

	code := []byte{
		0x55, 0x48, 0x89, 0xe5, 0xc3, // func one
		0x90, 0x90,
		0x55, 0x48, 0x89, 0xe5, 0xc3, // func two
	}
	img := &image.Image{
		Arch:  "x86_64",
		All:   code,
		Loads: []image.Seg{{VA: 0x401000, Off: 0, Size: uint64(len(code)), R: true, X: true}},
	}

	got := tbl.FindStarts(img, 16, 0.9)
	want := []uint64{0x401000, 0x401007}
	if !slices.Equal(got, want) {
		t.Errorf("FindStarts = %#x, want %#x", got, want)
	}
}

func TestFindStartsArm64Alignment(t *testing.T) {
	tbl := New()
	tbl.Add([]byte{0xfd, 0x7b, 0xbf, 0xa9}, 9, 1)

	// The signature sits at offset 2; an arm64 scan only visits
	// instruction boundaries and must not report it.
	misaligned := []byte{0x00, 0x00, 0xfd, 0x7b, 0xbf, 0xa9, 0x00, 0x00}
	img := &image.Image{
		Arch:  "arm64",
		All:   misaligned,
		Loads: []image.Seg{{VA: 0x400000, Off: 0, Size: uint64(len(misaligned)), R: true, X: true}},
	}
	if got := tbl.FindStarts(img, 16, 0.9); len(got) != 0 {
		t.Errorf("FindStarts = %#x, want none at a misaligned offset", got)
	}

	aligned := []byte{0x00, 0x00, 0x00, 0x00, 0xfd, 0x7b, 0xbf, 0xa9}
	img.All = aligned
	img.Loads = []image.Seg{{VA: 0x400000, Off: 0, Size: uint64(len(aligned)), R: true, X: true}}
	got := tbl.FindStarts(img, 16, 0.9)
	if !slices.Equal(got, []uint64{0x400004}) {
		t.Errorf("FindStarts = %#x, want [0x400004]", got)
	}
}

func TestFindStartsThreshold(t *testing.T) {
	tbl := New()
	tbl.Add([]byte{0x55}, 1, 1) // scores 0.5

	code := []byte{0x55, 0xc3}
	img := &image.Image{
		Arch:  "x86_64",
		All:   code,
		Loads: []image.Seg{{VA: 0x1000, Off: 0, Size: 2, R: true, X: true}},
	}

	if got := tbl.FindStarts(img, 16, 0.9); len(got) != 0 {
		t.Errorf("FindStarts = %#x, want none below threshold", got)
	}
	if got := tbl.FindStarts(img, 16, 0.5); !slices.Equal(got, []uint64{0x1000}) {
		t.Errorf("FindStarts = %#x, want [0x1000] at threshold 0.5", got)
	}
}

func TestDefaultTable(t *testing.T) {
	tbl := Default()

	if got := tbl.Score([]byte{0x55, 0x48, 0x89, 0xe5}); got < 0.9 {
		t.Errorf("push rbp; mov rbp, rsp scored %v, want >= 0.9", got)
	}
	if got := tbl.Score([]byte{0xf3, 0x0f, 0x1e, 0xfa}); got < 0.9 {
		t.Errorf("endbr64 scored %v, want >= 0.9", got)
	}
	if got := tbl.Score([]byte{0xfd, 0x7b, 0xbf, 0xa9}); got < 0.9 {
		t.Errorf("stp x29, x30 scored %v, want >= 0.9", got)
	}
	if got := tbl.Score([]byte{0x55, 0xc3}); got >= 0.9 {
		t.Errorf("bare push rbp scored %v, want < 0.9", got)
	}
	if got := tbl.Score([]byte{0x0f, 0x05}); got != 0 {
		t.Errorf("syscall bytes scored %v, want 0", got)
	}
}
