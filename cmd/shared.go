package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/meepleboard/meeple/pkg/clierr"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// prompter reads answers from the command's input. One instance must serve
// all prompts of a command so buffered input is not lost between them.
type prompter struct {
	cmd *cobra.Command
	in  *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{cmd: cmd, in: bufio.NewReader(cmd.InOrStdin())}
}

// input prompts the user for input and returns the trimmed string.
func (p *prompter) input(prompt string) (string, error) {
	p.cmd.Print(prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", clierr.New(clierr.Validation, "Failed to read input.", err)
	}
	return strings.TrimSpace(line), nil
}

// password reads a secret without echo when stdin is a terminal, and as a
// plain line otherwise.
func (p *prompter) password(prompt string) (string, error) {
	f, ok := p.cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p.input(prompt)
	}
	p.cmd.Print(prompt)
	secret, err := term.ReadPassword(int(f.Fd()))
	p.cmd.Println() // ReadPassword swallows the newline
	if err != nil {
		return "", clierr.New(clierr.Validation, "Failed to read password.", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

// newTable returns a left-aligned table without row separators.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetRowLine(false)
	return table
}

func success(cmd *cobra.Command, format string, args ...any) {
	_, _ = color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

func parseBggID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, clierr.New(clierr.Validation, fmt.Sprintf("Invalid BGG id %q. It must be a positive integer.", s), err)
	}
	return id, nil
}
