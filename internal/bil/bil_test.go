package bil

import "testing"

func TestStmtStrings(t *testing.T) {
	x0 := Var{Name: "x0", Bits: 64}
	x1 := Var{Name: "x1", Bits: 64}

	tests := []struct {
		name string
		stmt Stmt
		want string
	}{
		{
			name: "move binop",
			stmt: Move{Var: x0, Exp: BinOp{Op: "+", L: x1, R: Int{Val: 8, Bits: 64}}},
			want: "x0 := x1 + 0x8:64",
		},
		{
			name: "nested binop parenthesized",
			stmt: Move{Var: x0, Exp: BinOp{Op: "*", L: BinOp{Op: "+", L: x1, R: Int{Val: 1, Bits: 64}}, R: Int{Val: 4, Bits: 64}}},
			want: "x0 := (x1 + 0x1:64) * 0x4:64",
		},
		{
			name: "load",
			stmt: Move{Var: x0, Exp: Load{Mem: mem, Addr: BinOp{Op: "+", L: x1, R: Int{Val: 16, Bits: 64}}, Bits: 64}},
			want: "x0 := mem[x1 + 0x10:64]:u64",
		},
		{
			name: "store",
			stmt: Move{Var: mem, Exp: Store{Mem: mem, Addr: x1, Val: x0, Bits: 32}},
			want: "mem := mem with [x1]:u32 <- x0",
		},
		{
			name: "jmp",
			stmt: Jmp{Target: Int{Val: 0x1008, Bits: 64}},
			want: "jmp 0x1008:64",
		},
		{
			name: "jmp resolved",
			stmt: Jmp{Target: Int{Val: 0x1008, Bits: 64}, Sym: "main"},
			want: "jmp @main",
		},
		{
			name: "cjmp",
			stmt: CJmp{Cond: flagIs("ZF", 1), Target: Int{Val: 0x1010, Bits: 64}},
			want: "if (ZF = 0x1:1) jmp 0x1010:64",
		},
		{
			name: "call resolved",
			stmt: Call{Target: Int{Val: 0x2000, Bits: 64}, Sym: "memcpy"},
			want: "call @memcpy",
		},
		{
			name: "ret",
			stmt: Ret{},
			want: "ret",
		},
		{
			name: "special",
			stmt: Special{Text: "udf #0"},
			want: `special ("udf #0")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stmt.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVarTemp(t *testing.T) {
	if !(Var{Name: "#3", Bits: 64}).Temp() {
		t.Error("#3 should be a temporary")
	}
	if (Var{Name: "x0", Bits: 64}).Temp() {
		t.Error("x0 should not be a temporary")
	}
}
