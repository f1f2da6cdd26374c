package runner

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

// lineCollector gathers lines from one or more streams in arrival order.
type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) readFrom(r io.Reader) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			c.add(strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"))
		}
		if err != nil {
			return
		}
	}
}

func (c *lineCollector) add(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

func (c *lineCollector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.lines, "\n")
}
