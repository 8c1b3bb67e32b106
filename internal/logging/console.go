package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

const (
	ansiYellow = "\x1b[33m"
	ansiGreen  = "\x1b[32m"
	ansiReset  = "\x1b[0m"
)

// Console prints the sweeper's Info and Success lines. Info lines are yellow and
// Success lines green when colour is enabled; the colour never reaches the log file.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
	file  *log.Logger
}

// NewConsole writes to out, colouring only when out is a terminal and color is true.
// file, when non-nil, receives an uncoloured copy of every line.
func NewConsole(out io.Writer, color bool, file *log.Logger) *Console {
	return &Console{
		out:   out,
		color: color && isTerminal(out),
		file:  file,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *Console) Info(msg string, args ...interface{}) {
	c.print(ansiYellow, "INFO", msg, args)
}

func (c *Console) Success(msg string, args ...interface{}) {
	c.print(ansiGreen, "DELETED", msg, args)
}

func (c *Console) print(color, level, msg string, args []interface{}) {
	line := format(msg, args)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.color {
		fmt.Fprintf(c.out, "%s%s%s\n", color, line, ansiReset)
	} else {
		fmt.Fprintln(c.out, line)
	}
	if c.file != nil {
		c.file.Printf("[%s] %s", level, line)
	}
}

// format renders a single key/value pair as "msg: value", and anything
// else as msg followed by key=value pairs
func format(msg string, args []interface{}) string {
	if len(args) == 2 {
		return fmt.Sprintf("%s: %v", msg, args[1])
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	return b.String()
}
