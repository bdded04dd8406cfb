// Package probing reads small /proc and /sys files.
package probing

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// Buffer pool to avoid allocations on every file read
var bufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 0, 8192)
		return &buf
	},
}

// File reads a file into a string.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	bp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bp)
	buf := (*bp)[:0]
	for {
		if len(buf) == cap(buf) {
			buf = append(buf, 0)[:len(buf)]
		}
		n, err := f.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if err != nil || n == 0 {
			break
		}
	}
	*bp = buf
	return string(buf), nil
}

// FileLines reads a file into lines, without the trailing empty line.
func FileLines(path string) ([]string, error) {
	v, err := File(path)
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimRight(v, "\n"), "\n"), nil
}

// FileInts reads a whitespace separated list of integers, such as a cgroup
// tasks file.
func FileInts(path string) ([]int, error) {
	v, err := File(path)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(v)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// ParseUint64 parses a decimal counter, ignoring a trailing " kB".
func ParseUint64(s string) (uint64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), " kB"))
	return strconv.ParseUint(s, 10, 64)
}

// ParseFloat64 parses a float, ignoring surrounding whitespace.
func ParseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
