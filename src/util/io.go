package util

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"
	"sync"
	"time"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Writer buffers output from a compiler stage in a strings.Builder.
// When the Flush or Close method is called the buffer is emptied and sent to
// the assigned output listener through channel c.
type Writer struct {
	sb strings.Builder
	c  chan string
}

// -------------------
// ----- Globals -----
// -------------------

var wc chan string     // Write channel used for receiving data from writers.
var cc chan error      // Close channel used by main thread to signal to end write operations.
var wg *sync.WaitGroup // Synchronises open writers with the listener shutdown.
var lc chan error      // Listener completion channel.

// ---------------------
// ----- Functions -----
// ---------------------

// Write writes a format string to the Writer's buffer.
func (w *Writer) Write(format string, args ...interface{}) {
	w.sb.WriteString(fmt.Sprintf(format, args...))
}

// WriteString writes a plain string to the Writer's buffer.
func (w *Writer) WriteString(s string) {
	w.sb.WriteString(s)
}

// Ins1 writes a one-line instruction using the operator and a single operand.
func (w *Writer) Ins1(op, rd string) {
	w.sb.WriteString(fmt.Sprintf("\t%s\t%s\n", op, rd))
}

// Ins2 writes a one-line instruction using the operator, source operand and destination operand,
// in AT&T operand order.
func (w *Writer) Ins2(op, rs, rd string) {
	w.sb.WriteString(fmt.Sprintf("\t%s\t%s, %s\n", op, rs, rd))
}

// Ins2imm writes a one-line instruction moving the signed immediate imm into destination operand rd.
func (w *Writer) Ins2imm(op string, imm int64, rd string) {
	w.sb.WriteString(fmt.Sprintf("\t%s\t$%d, %s\n", op, imm, rd))
}

// Label writes a one-line label with the given name.
func (w *Writer) Label(name string) {
	w.sb.WriteString(fmt.Sprintf("%s:\n", name))
}

// Flush empties the Writer's buffer and sends the buffer data to the
// designated output listener over the Writer's channel.
func (w *Writer) Flush() {
	if w.sb.Len() > 0 {
		w.c <- w.sb.String()
		w.sb = strings.Builder{}
	}
}

// Close flushes the Writer's buffer and releases the Writer.
func (w *Writer) Close() {
	w.Flush()
	w.c = nil
	wg.Done()
}

// NewWriter returns a new Writer to be used by a compiler stage to write strings to the output buffer.
// Must not be called before ListenWrite.
func NewWriter() Writer {
	wg.Add(1)
	return Writer{
		sb: strings.Builder{},
		c:  wc,
	}
}

// ReadSource reads source code from file or stdin.
// If the Options structure holds a string for source the file will be opened and read.
// Else the function waits for a short period for input on stdin. If no input on stdin is
// provided the function returns an error.
func ReadSource(opt Options) (string, error) {
	if len(opt.Src) > 0 {
		// Read from file.
		b, err := ioutil.ReadFile(opt.Src)
		return string(b), err
	}

	// Read stdin.
	c := make(chan string)
	cerr := make(chan error)

	// Concurrently wait for input on stdin.
	go func(c chan string, cerr chan error) {
		defer close(c)
		defer close(cerr)
		reader := bufio.NewReader(os.Stdin)
		text, err := reader.ReadString(0)
		if err == nil || err == io.EOF {
			c <- text
		} else {
			cerr <- err
		}
	}(c, cerr)

	// Select between input from stdin or timer expiry.
	select {
	case <-time.After(500 * time.Millisecond):
		return "", errors.New("expected input from stdin, got none")
	case s := <-c:
		return s, nil
	case err := <-cerr:
		return "", err
	}
}

// ListenWrite starts the output listener. Data received from Writers is buffered and written to
// the io.Writer w. The listener loops until a termination signal is sent using the Close function.
func ListenWrite(w io.Writer) {
	wg = &sync.WaitGroup{}
	wc = make(chan string, 1)
	cc = make(chan error, 1)
	lc = make(chan error, 1)
	bw := bufio.NewWriter(w)

	// Listen for input and termination signal.
	go func(wc chan string, cc chan error) {
		defer close(wc)
		defer close(cc)
		for {
			select {
			case s := <-wc:
				if _, err := bw.WriteString(s); err != nil {
					lc <- err
					return
				}
			case <-cc:
				// Drain pending writes before flushing.
				for {
					select {
					case s := <-wc:
						if _, err := bw.WriteString(s); err != nil {
							lc <- err
							return
						}
					default:
						lc <- bw.Flush()
						return
					}
				}
			}
		}
	}(wc, cc)
}

// Close waits for all open Writers to close, stops the listener and flushes buffered output.
// Must be called exactly once after ListenWrite, when all compiler stages have finished.
func Close() error {
	wg.Wait()
	cc <- nil
	return <-lc
}
