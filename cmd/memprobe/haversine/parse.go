package haversine

import (
	"fmt"
	"strconv"
)

// Kind identifies a parsed JSON value's type.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

// Value is a parsed JSON value. Objects keep their members in document order
// and are searched linearly; the documents here have one or four keys.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	arr  []Value
	obj  []Member
}

// Member is one key/value pair of a JSON object.
type Member struct {
	Key   string
	Value Value
}

// Kind returns the value's type.
func (v Value) Kind() Kind { return v.kind }

// Num returns the value as a float64, or 0 for non-numbers.
func (v Value) Num() float64 { return v.num }

// Str returns the value as a string, or "" for non-strings.
func (v Value) Str() string { return v.str }

// Bool returns the value as a bool, or false for non-bools.
func (v Value) Bool() bool { return v.b }

// Elements returns the array's elements, or nil for non-arrays.
func (v Value) Elements() []Value { return v.arr }

// Member returns the named object member.
func (v Value) Member(key string) (Value, bool) {
	for _, m := range v.obj {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Parse reads a JSON document without reflection, so that parse cost stays
// proportional to the input and is measurable as a workload.
func Parse(data []byte) (Value, error) {
	p := &parser{data: data}
	p.skipSpace()
	v, err := p.parseValue()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.pos != len(p.data) {
		return Value{}, p.errorf("trailing data")
	}
	return v, nil
}

type parser struct {
	data []byte
	pos  int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("json offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() (byte, bool) {
	if p.pos >= len(p.data) {
		return 0, false
	}
	return p.data[p.pos], true
}

func (p *parser) expect(c byte) error {
	got, ok := p.peek()
	if !ok {
		return p.errorf("unexpected end of input, want %q", c)
	}
	if got != c {
		return p.errorf("unexpected %q, want %q", got, c)
	}
	p.pos++
	return nil
}

func (p *parser) parseValue() (Value, error) {
	c, ok := p.peek()
	if !ok {
		return Value{}, p.errorf("unexpected end of input")
	}

	switch {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '"':
		s, err := p.parseString()
		if err != nil {
			return Value{}, err
		}
		return Value{kind: String, str: s}, nil
	case c == 't' || c == 'f':
		return p.parseBool()
	case c == 'n':
		if err := p.parseLiteral("null"); err != nil {
			return Value{}, err
		}
		return Value{kind: Null}, nil
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return Value{}, p.errorf("unexpected %q", c)
	}
}

func (p *parser) parseObject() (Value, error) {
	if err := p.expect('{'); err != nil {
		return Value{}, err
	}

	var members []Member
	p.skipSpace()
	if c, ok := p.peek(); ok && c == '}' {
		p.pos++
		return Value{kind: Object}, nil
	}

	for {
		p.skipSpace()
		key, err := p.parseString()
		if err != nil {
			return Value{}, err
		}

		p.skipSpace()
		if err := p.expect(':'); err != nil {
			return Value{}, err
		}

		p.skipSpace()
		val, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		members = append(members, Member{Key: key, Value: val})

		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return Value{}, p.errorf("unterminated object")
		}
		p.pos++
		if c == '}' {
			return Value{kind: Object, obj: members}, nil
		}
		if c != ',' {
			return Value{}, p.errorf("unexpected %q in object, want ',' or '}'", c)
		}
	}
}

func (p *parser) parseArray() (Value, error) {
	if err := p.expect('['); err != nil {
		return Value{}, err
	}

	var elements []Value
	p.skipSpace()
	if c, ok := p.peek(); ok && c == ']' {
		p.pos++
		return Value{kind: Array}, nil
	}

	for {
		p.skipSpace()
		val, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		elements = append(elements, val)

		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return Value{}, p.errorf("unterminated array")
		}
		p.pos++
		if c == ']' {
			return Value{kind: Array, arr: elements}, nil
		}
		if c != ',' {
			return Value{}, p.errorf("unexpected %q in array, want ',' or ']'", c)
		}
	}
}

func (p *parser) parseString() (string, error) {
	if err := p.expect('"'); err != nil {
		return "", err
	}

	start := p.pos
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case '"':
			s := string(p.data[start:p.pos])
			p.pos++
			return s, nil
		case '\\':
			return "", p.errorf("escape sequences are not supported")
		default:
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *parser) parseBool() (Value, error) {
	if c, _ := p.peek(); c == 't' {
		if err := p.parseLiteral("true"); err != nil {
			return Value{}, err
		}
		return Value{kind: Bool, b: true}, nil
	}
	if err := p.parseLiteral("false"); err != nil {
		return Value{}, err
	}
	return Value{kind: Bool}, nil
}

func (p *parser) parseLiteral(lit string) error {
	if p.pos+len(lit) > len(p.data) || string(p.data[p.pos:p.pos+len(lit)]) != lit {
		return p.errorf("invalid literal, want %q", lit)
	}
	p.pos += len(lit)
	return nil
}

func (p *parser) parseNumber() (Value, error) {
	start := p.pos
	if c, ok := p.peek(); ok && c == '-' {
		p.pos++
	}
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-' {
			p.pos++
			continue
		}
		break
	}

	num, err := strconv.ParseFloat(string(p.data[start:p.pos]), 64)
	if err != nil {
		return Value{}, p.errorf("bad number %q", p.data[start:p.pos])
	}
	return Value{kind: Number, num: num}, nil
}
