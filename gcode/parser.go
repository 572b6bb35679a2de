package gcode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// SyntaxError reports a program line that is not a sequence of words.
type SyntaxError struct {
	Line int
	Text string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: invalid or unhandled line: %s", e.Line, e.Text)
}

// Parser reads blocks from G-code text, one per line. Comments in
// parentheses or after ';', blank lines, '%' tape markers and N line
// numbers are dropped.
type Parser struct {
	br   *bufio.Reader
	line int
}

func NewParser(r io.Reader) *Parser {
	if br, ok := r.(*bufio.Reader); ok {
		return &Parser{br: br}
	}

	return &Parser{br: bufio.NewReader(r)}
}

var (
	rx         = regexp.MustCompile(`^([A-Z][+\-]?[0-9]*\.?[0-9]*)+$`)
	rxSplit    = regexp.MustCompile(`[A-Z][+\-]?[0-9]*\.?[0-9]*`)
	rxComments = regexp.MustCompile(`\([^)]*\)`)
)

// Line is the number of the last line read.
func (p *Parser) Line() int { return p.line }

func (p *Parser) Read() (Block, error) {
	for {
		s, err := p.br.ReadString('\n')
		if errors.Is(err, io.EOF) && s != "" {
			err = nil
		}
		if err != nil {
			return nil, err
		}
		p.line++

		s = strings.SplitN(s, ";", 2)[0]
		s = rxComments.ReplaceAllString(s, "")
		s = strings.Join(strings.Fields(s), "")
		s = strings.ToUpper(s)

		if s == "" || s == "%" {
			continue
		}
		if !rx.MatchString(s) {
			return nil, &SyntaxError{Line: p.line, Text: s}
		}

		codes := rxSplit.FindAllString(s, -1)
		res := make(Block, 0, len(codes))
		for _, c := range codes {
			if c[0] == 'N' {
				continue
			}
			arg, err := strconv.ParseFloat(c[1:], 64)
			if err != nil {
				return nil, &SyntaxError{Line: p.line, Text: s}
			}
			res = append(res, Word{W: c[0], Arg: arg})
		}
		if len(res) == 0 {
			continue
		}

		return res, nil
	}
}
