package nexusphp

import (
	"invitarium/lib/restyutil"
)

var restyDumpOutput restyutil.DumpOutput

// SetRestyDumpOutput makes every session created afterwards dump its
// raw HTTP exchanges to the output, for debugging site markup drift.
func SetRestyDumpOutput(out restyutil.DumpOutput) {
	restyDumpOutput = out
}
