// Package console writes section rules and asks questions on a terminal.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/pkg/errors"
)

const ruleWidth = 80

// Styles for rules.
var (
	Yellow  = color.New(color.FgYellow)
	Magenta = color.New(color.FgMagenta)
	Green   = color.New(color.FgGreen, color.OpBold)
	Red     = color.New(color.FgRed, color.OpBold)
	Bold    = color.New(color.OpBold)
)

// ErrNoAnswer is returned when input ends before a usable answer.
var ErrNoAnswer = errors.New("no answer")

// Console reads answers from In and writes to Out.
type Console struct {
	in  *bufio.Reader
	Out io.Writer
}

// New returns a Console over in and out.
func New(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), Out: out}
}

// Rule writes a left-aligned horizontal rule titled msg.
func (c *Console) Rule(style color.Style, msg string) {
	title := "── " + msg + " "
	if pad := ruleWidth - len([]rune(title)); pad > 0 {
		title += strings.Repeat("─", pad)
	}
	fmt.Fprintln(c.Out, style.Sprint(title))
}

func (c *Console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", ErrNoAnswer
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question until it gets an answer.
// Running out of input counts as no.
func (c *Console) Confirm(question string) (bool, error) {
	for {
		fmt.Fprintf(c.Out, "%s [y/n]: ", Bold.Sprint(question))
		answer, err := c.readLine()
		if err == ErrNoAnswer {
			fmt.Fprintln(c.Out)
			return false, nil
		}
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(c.Out, "Please enter Y or N")
	}
}

// Ask asks for a non-empty line of text.
func (c *Console) Ask(question string) (string, error) {
	for {
		fmt.Fprintf(c.Out, "%s: ", question)
		answer, err := c.readLine()
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
	}
}

// Choose asks for one of choices, matched case-sensitively,
// until it gets one.
func (c *Console) Choose(question string, choices []string) (string, error) {
	for {
		fmt.Fprintf(c.Out, "%s (%s): ", question, strings.Join(choices, ", "))
		answer, err := c.readLine()
		if err != nil {
			return "", err
		}
		for _, choice := range choices {
			if answer == choice {
				return answer, nil
			}
		}
		fmt.Fprintf(c.Out, "Error: %q is not one of %s.\n", answer, strings.Join(choices, ", "))
	}
}
