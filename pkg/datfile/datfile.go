// Package datfile reads the key: value parameter files consumed by the
// ParMooN fluid and particle solvers.
package datfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// skipPrefixes are line openers that mark comments, separators and
// continuation lines in solver parameter files.
const skipPrefixes = "# \n\t\r=:()[]{}<>/\\|;,.?!@$%^&*-_+~`\"'"

// Params maps parameter names to their raw string values.
type Params map[string]string

// Parse reads parameters from r. Every line that does not start with a
// skip character must hold a "KEY: value" pair.
func Parse(r io.Reader) (Params, error) {
	params := make(Params)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" || strings.ContainsRune(skipPrefixes, rune(line[0])) {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected \"KEY: value\", got %q", lineNo, line)
		}
		params[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading parameters: %w", err)
	}

	return params, nil
}

// ParseFile reads parameters from the file at path.
func ParseFile(path string) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening dat file: %w", err)
	}
	defer f.Close()

	params, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return params, nil
}

// String returns the value of key.
func (p Params) String(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", fmt.Errorf("parameter %s not set", key)
	}
	return v, nil
}

// Int returns the value of key as an integer.
func (p Params) Int(key string) (int, error) {
	v, err := p.String(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", key, err)
	}
	return n, nil
}

// Float returns the value of key as a float.
func (p Params) Float(key string) (float64, error) {
	v, err := p.String(key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", key, err)
	}
	return f, nil
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
