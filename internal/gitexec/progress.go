package gitexec

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Both backends surface clone progress as sideband text lines in the shape
// git itself prints:
//
//	Receiving objects:  67% (35484/52960), 236.76 MiB | 78.92 MiB/s
//	Resolving deltas:  12% (120/1000)
//
// sidebandParser is an io.Writer that turns those lines into cumulative
// TransferProgress samples.
var (
	receivingRegex = regexp.MustCompile(`Receiving objects:\s*\d+%\s*\((\d+)/(\d+)\)(?:,\s*([\d.]+)\s*(B|KiB|MiB|GiB))?`)
	resolvingRegex = regexp.MustCompile(`Resolving deltas:\s*\d+%\s*\((\d+)/(\d+)\)`)
	countingRegex  = regexp.MustCompile(`(?:remote: )?Counting objects:\s*\d+%?\s*\((\d+)/(\d+)\)`)
)

type sidebandParser struct {
	onTransfer func(TransferProgress)

	mu      sync.Mutex
	partial string
	last    TransferProgress
}

func newSidebandParser(onTransfer func(TransferProgress)) *sidebandParser {
	return &sidebandParser{onTransfer: onTransfer}
}

func sizeToBytes(value string, unit string) int64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	switch unit {
	case "KiB":
		f *= 1 << 10
	case "MiB":
		f *= 1 << 20
	case "GiB":
		f *= 1 << 30
	}
	return int64(f)
}

func (p *sidebandParser) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// git redraws progress with \r; treat both separators as line breaks
	// and keep the trailing fragment for the next write.
	text := p.partial + strings.ReplaceAll(string(data), "\r", "\n")
	lines := strings.Split(text, "\n")
	p.partial = lines[len(lines)-1]

	for _, line := range lines[:len(lines)-1] {
		p.parseLine(line)
	}
	return len(data), nil
}

// parseLine updates the cumulative sample from one sideband line and emits
// it when anything changed. Caller must hold p.mu.
func (p *sidebandParser) parseLine(line string) {
	updated := false

	if m := receivingRegex.FindStringSubmatch(line); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			p.last.ReceivedObjects = n
			updated = true
		}
		if n, err := strconv.Atoi(m[2]); err == nil {
			p.last.TotalObjects = n
		}
		if m[3] != "" {
			p.last.ReceivedBytes = sizeToBytes(m[3], m[4])
		}
	} else if m := resolvingRegex.FindStringSubmatch(line); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			p.last.IndexedObjects = n
			updated = true
		}
		if p.last.TotalObjects == 0 {
			if n, err := strconv.Atoi(m[2]); err == nil {
				p.last.TotalObjects = n
			}
		}
	} else if m := countingRegex.FindStringSubmatch(line); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil && p.last.TotalObjects == 0 {
			p.last.TotalObjects = n
			updated = true
		}
	}

	if updated && p.onTransfer != nil {
		p.onTransfer(p.last)
	}
}
