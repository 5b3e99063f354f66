// Package diagnostics wires structured logging for the checker's stages.
// Every pipeline stage logs under a scope beneath the "kernelchk" root so
// a run's trace can be filtered per stage (parse, compile, check).
package diagnostics

import (
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

const rootScope = "kernelchk"

// Configure sets the process-wide verbosity: -1 silences everything (the
// test default), 0 is notices and up, 1 adds info, 2 adds debug.
func Configure(verbosity int) {
	commonlog.Configure(verbosity, nil)
}

// Logger returns the logger for one named stage.
func Logger(scope string) commonlog.Logger {
	return commonlog.GetLogger(rootScope + "." + scope)
}
