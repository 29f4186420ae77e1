package disasm

// Block is a basic block: control enters only at the first instruction
// and leaves only after the last.
type Block struct {
	Start uint64
	Insts Stream
	Succ  []uint64
}

// Blocks partitions a stream into basic blocks. Leaders are the stream
// start, every in-stream target of a jump or conditional, and every
// instruction following a control transfer. Calls end a block and fall
// through.
func Blocks(s Stream) []Block {
	if len(s) == 0 {
		return nil
	}

	inStream := make(map[uint64]bool, len(s))
	for _, inst := range s {
		inStream[inst.VA] = true
	}

	leader := map[uint64]bool{s[0].VA: true}
	for i, inst := range s {
		if (inst.Jump || inst.Cond) && inst.Target != 0 && inStream[inst.Target] {
			leader[inst.Target] = true
		}
		if transfers(inst) && i+1 < len(s) {
			leader[s[i+1].VA] = true
		}
	}

	var blocks []Block
	cur := -1
	for _, inst := range s {
		if cur < 0 || leader[inst.VA] {
			blocks = append(blocks, Block{Start: inst.VA})
			cur = len(blocks) - 1
		}
		blocks[cur].Insts = append(blocks[cur].Insts, inst)
	}

	for i := range blocks {
		b := &blocks[i]
		last := b.Insts[len(b.Insts)-1]
		next := last.VA + uint64(last.Len)
		switch {
		case last.Ret:
		case last.Jump:
			if last.Target != 0 && inStream[last.Target] {
				b.Succ = append(b.Succ, last.Target)
			}
		case last.Cond:
			if last.Target != 0 && inStream[last.Target] {
				b.Succ = append(b.Succ, last.Target)
			}
			if inStream[next] {
				b.Succ = append(b.Succ, next)
			}
		default:
			if inStream[next] {
				b.Succ = append(b.Succ, next)
			}
		}
	}
	return blocks
}

func transfers(inst Inst) bool {
	return inst.Jump || inst.Cond || inst.Call || inst.Ret
}
