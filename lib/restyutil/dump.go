// Package restyutil dumps raw HTTP exchanges to a debugging sink.
// Tracker markup drifts constantly; having the exact bytes a failed
// parse saw is the fastest way to fix the selectors.
package restyutil

import (
	"strconv"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type DumpOutput interface {
	Write(id string, contents string)
}

// DumpResponses writes every completed exchange on the client to the
// output, numbered in request order. A nil output is a no-op.
func DumpResponses(client *resty.Client, output DumpOutput) {
	if output == nil {
		return
	}

	var idcounter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := strconv.FormatUint(atomic.AddUint64(&idcounter, 1), 10)
		output.Write(id, formatHttpMessage(res))
		return nil
	})
}
