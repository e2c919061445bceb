// frame.go implements the stack frame and alignment primitives. The alignment
// counter tracks every byte subtracted from %rsp since the function prologue,
// alignment padding and temporary pushes included. Right after
// pushq %rbp; movq %rsp, %rbp the stack is 16-byte aligned and the counter is
// zero; every call must therefore be emitted with the counter congruent to
// zero modulo 16.

package x86

import "vslc64/src/util"

// allocateStack grows the stack by slots 8-byte slots. No alignment guarantee
// is given.
func allocateStack(slots int, sa *int, wr *util.Writer) {
	if slots < 1 {
		return
	}
	*sa += slots * wordSize
	wr.Write("\tsubq\t$%d, %%rsp\n", slots*wordSize)
}

// allocateAlignedStack grows the stack by slots 8-byte slots plus whatever
// padding brings the stack to 16-byte alignment, in a single adjustment.
// The padding is returned and must be undone with unalignStack after the call
// the allocation was made for.
func allocateAlignedStack(slots int, sa *int, wr *util.Writer) int {
	*sa += slots * wordSize

	pad := 0
	if *sa%stackAlign != 0 {
		pad = stackAlign - *sa%stackAlign
		*sa += pad
	}

	if slots == 0 && pad == 0 {
		return 0
	}
	wr.Write("\tsubq\t$%d, %%rsp\n", slots*wordSize+pad)
	return pad
}

// alignStack pads the stack to 16-byte alignment and returns the padding.
// Used immediately before a call that takes no stack-passed arguments.
func alignStack(sa *int, wr *util.Writer) int {
	if *sa%stackAlign == 0 {
		return 0
	}
	pad := stackAlign - *sa%stackAlign
	*sa += pad
	wr.Write("\tsubq\t$%d, %%rsp\n", pad)
	return pad
}

// unalignStack undoes the stack adjustment pad returned by alignStack or
// allocateAlignedStack.
func unalignStack(pad int, sa *int, wr *util.Writer) {
	if pad != 0 {
		wr.Write("\taddq\t$%d, %%rsp\n", pad)
		*sa -= pad
	}
}
