package rotation

import "fmt"

// SequenceWarning flags two adjacent blocks of the same work/rest kind.
// It is advisory and never blocks an edit.
type SequenceWarning struct {
	Index int  // position of the second block of the pair
	Kind  Kind // the repeated kind
}

func (w SequenceWarning) String() string {
	return fmt.Sprintf("block %d repeats %s after another %s block", w.Index+1, w.Kind, w.Kind)
}

// CheckSequence reports whether blocks[index] repeats the kind of the block
// before it. Leave blocks are exempt from the alternation rule.
func CheckSequence(index int, blocks []Block) *SequenceWarning {
	if index <= 0 || index >= len(blocks) {
		return nil
	}
	cur, prev := blocks[index].Kind, blocks[index-1].Kind
	if cur != prev || (cur != KindWork && cur != KindRest) {
		return nil
	}
	return &SequenceWarning{Index: index, Kind: cur}
}

// SequenceWarnings returns every warning in block order.
func SequenceWarnings(blocks []Block) []SequenceWarning {
	var out []SequenceWarning
	for i := range blocks {
		if w := CheckSequence(i, blocks); w != nil {
			out = append(out, *w)
		}
	}
	return out
}
