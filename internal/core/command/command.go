// Package command implements trigger command detection over comment bodies
package command

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Command is a single parsed trigger occurrence
type Command struct {
	// Name is the trigger word without the leading bang, upper-cased
	Name string
	// Args are the whitespace separated tokens following the trigger on its line
	Args []string
	// Pos is the byte offset of the bang in the original body
	Pos int
}

// token is a bang-shaped word found during the scan
type token struct {
	word string
	args []string
	pos  int
}

var fold = cases.Fold()

// Parse scans body for the earliest occurrence of an enabled trigger.
// Matching is case-insensitive with Unicode case folding and word-boundary
// aware on both sides of the token. The second return is the total number of
// bang-shaped tokens in the body regardless of whether they are enabled,
// which callers use to enforce per-comment command limits.
// Deterministic and side-effect free
func Parse(body string, enabled []string) (Command, int, bool) {
	toks := scan(body)
	if len(toks) == 0 {
		return Command{}, 0, false
	}

	want := make(map[string]string, len(enabled))
	for _, e := range enabled {
		name := strings.TrimPrefix(e, "!")
		if name == "" {
			continue
		}
		want[fold.String(name)] = strings.ToUpper(name)
	}

	for _, t := range toks {
		if canonical, ok := want[fold.String(t.word)]; ok {
			return Command{Name: canonical, Args: t.args, Pos: t.pos}, len(toks), true
		}
	}
	return Command{}, len(toks), false
}

// scan walks the body once and collects every bang token in order
func scan(body string) []token {
	var out []token

	runes := []rune(body)
	byteAt := make([]int, len(runes)+1)
	{
		off := 0
		for i, r := range runes {
			byteAt[i] = off
			off += len(string(r))
		}
		byteAt[len(runes)] = off
	}

	for i := 0; i < len(runes); i++ {
		if runes[i] != '!' {
			continue
		}
		// left boundary: start of text or a non-word rune
		if i > 0 && isWord(runes[i-1]) {
			continue
		}
		// collect the word after the bang
		j := i + 1
		for j < len(runes) && isWord(runes[j]) {
			j++
		}
		if j == i+1 {
			continue // bare "!" is not a command
		}
		// right boundary: end of text or a non-word rune
		if j < len(runes) && isWord(runes[j]) {
			continue
		}
		out = append(out, token{
			word: string(runes[i+1 : j]),
			args: argsAfter(runes, j),
			pos:  byteAt[i],
		})
		i = j - 1
	}
	return out
}

// argsAfter splits the remainder of the line following the token
func argsAfter(runes []rune, from int) []string {
	end := from
	for end < len(runes) && runes[end] != '\n' {
		end++
	}
	fields := strings.Fields(string(runes[from:end]))
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
