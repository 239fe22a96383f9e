package util

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineAlwaysTerminated(t *testing.T) {
	var buf bytes.Buffer
	p := NewSafePrinter(&buf)

	p.Line("sending incremental file list")
	p.Line("done\n")

	assert.Equal(t, "sending incremental file list\ndone\n", buf.String())
}

func TestSuspendMutesOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewSafePrinter(&buf)

	p.Suspend()
	p.Printf("hidden %d\n", 1)
	p.Line("hidden")
	p.Resume()
	p.Println("visible")

	assert.Equal(t, "visible\n", buf.String())
}

func TestSetWriterReturnsPrevious(t *testing.T) {
	var first, second bytes.Buffer
	p := NewSafePrinter(&first)

	prev := p.SetWriter(&second)
	p.Println("routed")

	assert.Equal(t, &first, prev)
	assert.Empty(t, first.String())
	assert.Equal(t, "routed\n", second.String())
}
