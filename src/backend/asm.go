package backend

import (
	"fmt"

	"vslc64/src/backend/x86"
	"vslc64/src/util"
)

// ---------------------
// ----- Functions -----
// ---------------------

// GenerateAssembler takes the syntax tree and generates output assembler code
// for the architecture defined by opt.
func GenerateAssembler(opt util.Options) error {
	switch opt.TargetArch {
	case util.X86_64:
		return x86.GenX86(opt)
	default:
		return fmt.Errorf("unsupported target architecture identifier %d", opt.TargetArch)
	}
}
