// Package trace provides memory-access workloads for the simulator:
// parsing of text trace files and seeded random generation.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/cachesim/timing/cache"
)

// Parse reads a text access trace. Each non-empty line is one access:
//
//	R <addr> <size>
//	W <addr> <size> <value>
//
// Sizes are b (byte), h (half-word), or w (word). Numbers may be
// decimal or 0x-prefixed hex. Everything after '#' is a comment.
func Parse(r io.Reader) ([]cache.Request, error) {
	var requests []cache.Request

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++

		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		req, err := parseLine(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		requests = append(requests, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	return requests, nil
}

// Load parses the trace file at the given path.
func Load(path string) ([]cache.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer f.Close()

	requests, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return requests, nil
}

func parseLine(fields []string) (cache.Request, error) {
	var req cache.Request

	switch strings.ToUpper(fields[0]) {
	case "R":
		if len(fields) != 3 {
			return req, fmt.Errorf("read takes address and size, got %d fields", len(fields))
		}
	case "W":
		if len(fields) != 4 {
			return req, fmt.Errorf("write takes address, size, and value, got %d fields", len(fields))
		}
		req.IsWrite = true
	default:
		return req, fmt.Errorf("unknown access type %q", fields[0])
	}

	addr, err := strconv.ParseUint(fields[1], 0, 64)
	if err != nil {
		return req, fmt.Errorf("bad address %q: %w", fields[1], err)
	}
	req.Address = addr

	size, err := parseSize(fields[2])
	if err != nil {
		return req, err
	}
	req.Size = size

	if req.IsWrite {
		value, err := strconv.ParseUint(fields[3], 0, 64)
		if err != nil {
			return req, fmt.Errorf("bad value %q: %w", fields[3], err)
		}
		req.Data = value
	}

	return req, nil
}

func parseSize(s string) (cache.AccessSize, error) {
	switch strings.ToLower(s) {
	case "b":
		return cache.SizeByte, nil
	case "h":
		return cache.SizeHalf, nil
	case "w":
		return cache.SizeWord, nil
	}
	return 0, fmt.Errorf("unknown access size %q", s)
}
