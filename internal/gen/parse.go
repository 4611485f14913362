package gen

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// ParseError reports malformed nesting: an unmatched "}" or a block that is
// never closed.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	source := e.Path
	if source == "" {
		source = "<string>"
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", source, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", source, e.Message)
}

// Parse parses s into a new tree.
func Parse(s string) (*Tree, error) {
	t := New()
	if err := t.Consume(s); err != nil {
		return nil, err
	}
	return t, nil
}

// Consume parses s and merges the entries into t; keys already present are
// replaced. On a parse error t is left untouched.
func (t *Tree) Consume(s string) error {
	parsed := New()
	p := &parser{src: s, line: 1}
	if err := p.parseTree(parsed, 0, 0); err != nil {
		return err
	}
	for _, k := range parsed.order {
		t.put(k, parsed.values[k])
	}
	return nil
}

// Load reads path from fs and consumes its contents. A read failure returns
// the error without mutating t.
func (t *Tree) Load(fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := t.Consume(string(data)); err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return err
	}
	return nil
}

// LoadFile parses the file at path into a new tree.
func LoadFile(fs afero.Fs, path string) (*Tree, error) {
	t := New()
	if err := t.Load(fs, path); err != nil {
		return nil, err
	}
	return t, nil
}

type parser struct {
	src  string
	pos  int
	line int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

// skipBlank skips whitespace, newlines and comment lines.
func (p *parser) skipBlank() {
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == '\n':
			p.line++
			p.pos++
		case c == ' ' || c == '\t' || c == '\r':
			p.pos++
		case c == '#' || strings.HasPrefix(p.src[p.pos:], "//"):
			for !p.eof() && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

// scanUntil returns the trimmed text up to (not including) any byte in stop.
func (p *parser) scanUntil(stop string) string {
	start := p.pos
	for !p.eof() && strings.IndexByte(stop, p.src[p.pos]) < 0 {
		p.pos++
	}
	return strings.TrimSpace(p.src[start:p.pos])
}

// opensBlock reports whether the next non-blank byte is "{", allowing the
// brace to sit on the line after its key. The position is only advanced
// when it is.
func (p *parser) opensBlock() bool {
	pos, line := p.pos, p.line
	for !p.eof() {
		c := p.src[p.pos]
		if c == '\n' {
			p.line++
		} else if c != ' ' && c != '\t' && c != '\r' {
			break
		}
		p.pos++
	}
	if p.peek() == '{' {
		p.pos++
		return true
	}
	p.pos, p.line = pos, line
	return false
}

func (p *parser) parseTree(t *Tree, depth, openLine int) error {
	for {
		p.skipBlank()
		if p.eof() {
			if depth > 0 {
				return &ParseError{Line: openLine, Message: "missing closing brace"}
			}
			return nil
		}

		if p.peek() == '}' {
			if depth == 0 {
				return &ParseError{Line: p.line, Message: "unexpected closing brace"}
			}
			p.pos++
			return nil
		}

		line := p.line
		key := p.scanUntil(":{}\n")
		var value string
		if p.peek() == ':' {
			p.pos++
			value = p.scanUntil("{}\n")
		}

		if p.opensBlock() {
			child := New()
			if err := p.parseTree(child, depth+1, line); err != nil {
				return err
			}
			if key != "" {
				t.put(key, &Value{Value: value, Children: child})
			}
			continue
		}

		// A "}" ending the entry is left for the next iteration.
		if key != "" {
			t.put(key, &Value{Value: value})
		}
	}
}
