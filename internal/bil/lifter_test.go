package bil

import (
	"slices"
	"testing"

	"github.com/karatemonkey63/bap-1/internal/disasm"
)

func liftOne(t *testing.T, arch string, code []byte, va uint64) []Stmt {
	t.Helper()
	d, err := disasm.New(arch)
	if err != nil {
		t.Fatal(err)
	}
	l, err := NewLifter(arch)
	if err != nil {
		t.Fatal(err)
	}
	return l.Lift(d.Decode(code, va))
}

func TestLiftArm64(t *testing.T) {
	testCases := []struct {
		name string
		code []byte
		want []string
	}{
		{
			name: "mov register",
			code: []byte{0xe0, 0x03, 0x01, 0xaa}, // mov x0, x1
			want: []string{"x0 := x1"},
		},
		{
			name: "add immediate",
			code: []byte{0x20, 0x20, 0x00, 0x91}, // add x0, x1, #8
			want: []string{"x0 := x1 + 0x8:64"},
		},
		{
			name: "load through address temp",
			code: []byte{0x20, 0x08, 0x40, 0xf9}, // ldr x0, [x1, #16]
			want: []string{"#0 := x1 + 0x10:64", "x0 := mem[#0]:u64"},
		},
		{
			name: "store of the zero register",
			code: []byte{0xbf, 0x1f, 0x00, 0xb9}, // str wzr, [x29, #28]
			want: []string{"#0 := x29 + 0x1c:64", "mem := mem with [#0]:u32 <- 0x0:32"},
		},
		{
			name: "compare sets flags",
			code: []byte{0x1f, 0x00, 0x01, 0xeb}, // cmp x0, x1
			want: []string{"#0 := x0 - x1", "ZF := #0 = 0x0:64", "NF := #0 <$ 0x0:64"},
		},
		{
			name: "nop lifts to nothing",
			code: []byte{0x1f, 0x20, 0x03, 0xd5},
			want: nil,
		},
		{
			name: "ret",
			code: []byte{0xc0, 0x03, 0x5f, 0xd6},
			want: []string{"ret"},
		},
		{
			name: "direct call",
			code: []byte{0x02, 0x00, 0x00, 0x94}, // bl +8
			want: []string{"call 0x1008:64"},
		},
		{
			name: "indirect call",
			code: []byte{0x60, 0x00, 0x3f, 0xd6}, // blr x3
			want: []string{"call x3"},
		},
		{
			name: "conditional branch",
			code: []byte{0x41, 0x00, 0x00, 0x54}, // b.ne +8
			want: []string{"if (ZF = 0x0:1) jmp 0x1008:64"},
		},
		{
			name: "compare and branch",
			code: []byte{0x40, 0x00, 0x00, 0xb5}, // cbnz x0, +8
			want: []string{"if (x0 <> 0x0:64) jmp 0x1008:64"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := render(liftOne(t, "arm64", tc.code, 0x1000))
			if !slices.Equal(got, tc.want) {
				t.Errorf("Lift = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLiftX86(t *testing.T) {
	testCases := []struct {
		name string
		code []byte
		want []string
	}{
		{
			name: "mov register",
			code: []byte{0x48, 0x89, 0xd8}, // mov rax, rbx
			want: []string{"rax := rbx"},
		},
		{
			name: "add immediate",
			code: []byte{0x48, 0x83, 0xc0, 0x08}, // add rax, 8
			want: []string{"rax := rax + 0x8:64"},
		},
		{
			name: "xor zeroing idiom",
			code: []byte{0x31, 0xc0}, // xor eax, eax
			want: []string{"eax := 0x0:32"},
		},
		{
			name: "push",
			code: []byte{0x55}, // push rbp
			want: []string{"rsp := rsp - 0x8:64", "mem := mem with [rsp]:u64 <- rbp"},
		},
		{
			name: "load through address temp",
			code: []byte{0x48, 0x8b, 0x45, 0xf8}, // mov rax, [rbp-8]
			want: []string{"#0 := rbp - 0x8:64", "rax := mem[#0]:u64"},
		},
		{
			name: "lea",
			code: []byte{0x48, 0x8d, 0x43, 0x08}, // lea rax, [rbx+8]
			want: []string{"rax := rbx + 0x8:64"},
		},
		{
			name: "ret",
			code: []byte{0xc3},
			want: []string{"ret"},
		},
		{
			name: "direct call",
			code: []byte{0xe8, 0x03, 0x00, 0x00, 0x00},
			want: []string{"call 0x2008:64"},
		},
		{
			name: "indirect call",
			code: []byte{0xff, 0xd0}, // call rax
			want: []string{"call rax"},
		},
		{
			name: "conditional branch",
			code: []byte{0x75, 0x02}, // jne +2
			want: []string{"if (ZF = 0x0:1) jmp 0x2004:64"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := render(liftOne(t, "x86_64", tc.code, 0x2000))
			if !slices.Equal(got, tc.want) {
				t.Errorf("Lift = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLiftUnmodeledIsSpecial(t *testing.T) {
	arm := liftOne(t, "arm64", []byte{0x01, 0x00, 0x00, 0xd4}, 0x1000) // svc #0
	if len(arm) != 1 {
		t.Fatalf("svc lifted to %d statements", len(arm))
	}
	if _, ok := arm[0].(Special); !ok {
		t.Errorf("svc lifted to %T, want Special", arm[0])
	}

	x86 := liftOne(t, "x86_64", []byte{0x0f, 0xa2}, 0x2000) // cpuid
	if len(x86) != 1 {
		t.Fatalf("cpuid lifted to %d statements", len(x86))
	}
	if _, ok := x86[0].(Special); !ok {
		t.Errorf("cpuid lifted to %T, want Special", x86[0])
	}
}

func TestLiftThenOptimize(t *testing.T) {
	got := render(Optimize(liftOne(t, "arm64", []byte{0x20, 0x08, 0x40, 0xf9}, 0x1000), Tuning{}))
	want := []string{"x0 := mem[x1 + 0x10:64]:u64"}
	if !slices.Equal(got, want) {
		t.Errorf("optimized lift = %q, want %q", got, want)
	}
}

func TestNewLifterUnsupported(t *testing.T) {
	if _, err := NewLifter("mips"); err == nil {
		t.Fatal("NewLifter(mips) should fail")
	}
}
