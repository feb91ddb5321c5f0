// Package command implements the Ex-style command-line surface: parsing
// `:cmd[!] [args]` into a structured command, and a registry that
// resolves names through the same exact-then-prefix matching spec.md
// §6 describes. Grounded on
// original_source/src/command_line/{registry,commands,executor}/*.
package command

import (
	"strings"
)

// MatchKind tags how a name resolved against the registry, mirroring
// the original's MatchResult enum.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchPrefix
	MatchAmbiguous
	MatchUnknown
)

// Match is the result of resolving one name against the registry.
type Match struct {
	Kind    MatchKind
	Name    string   // canonical name, valid for MatchExact/MatchPrefix
	Matches []string // candidate canonical names, valid for MatchAmbiguous
}

type def struct {
	name    string
	aliases []string
}

// Registry matches input tokens to canonical command names, handling
// aliases and unambiguous prefixes. Grounded on
// original_source/src/command_line/registry/mod.rs's CommandRegistry.
type Registry struct {
	defs []def
}

// NewRegistry builds the registry covering every canonical command
// spec.md §6 lists: quit/q, write/w, wq, edit/e, set, setlocal,
// bnext, bprev.
func NewRegistry() *Registry {
	r := &Registry{}
	r.register("quit", "q")
	r.register("write", "w")
	r.register("wq")
	r.register("edit", "e")
	r.register("set")
	r.register("setlocal")
	r.register("bnext")
	r.register("bprev")
	return r
}

func (r *Registry) register(name string, aliases ...string) {
	r.defs = append(r.defs, def{name: name, aliases: aliases})
}

// Match resolves input per the original's match_command: exact match
// (name or alias) first, then a prefix of exactly one command's name or
// aliases; a prefix shared by several commands is reported as ambiguous,
// and no match at all as unknown.
func (r *Registry) Match(input string) Match {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return Match{Kind: MatchUnknown, Name: input}
	}

	for _, d := range r.defs {
		if d.name == input {
			return Match{Kind: MatchExact, Name: d.name}
		}
		for _, a := range d.aliases {
			if a == input {
				return Match{Kind: MatchExact, Name: d.name}
			}
		}
	}

	var matches []string
	for _, d := range r.defs {
		if strings.HasPrefix(d.name, input) {
			matches = append(matches, d.name)
			continue
		}
		for _, a := range d.aliases {
			if strings.HasPrefix(a, input) {
				matches = append(matches, d.name)
				break
			}
		}
	}

	switch len(matches) {
	case 0:
		return Match{Kind: MatchUnknown, Name: input}
	case 1:
		return Match{Kind: MatchPrefix, Name: matches[0]}
	default:
		return Match{Kind: MatchAmbiguous, Name: input, Matches: matches}
	}
}

// Kind tags the parsed command's variant, the Go counterpart of
// ParsedCommand.
type Kind int

const (
	Quit Kind = iota
	Write
	WriteQuit
	Edit
	Set
	SetLocal
	BufferNext
	BufferPrevious
	Unknown
	Ambiguous
)

// Parsed is a fully parsed command line.
type Parsed struct {
	Kind     Kind
	Bangs    int
	Path     string // Write/Edit: optional target path, empty if omitted
	Option   string // Set/SetLocal
	Value    string // Set/SetLocal; HasValue distinguishes "" from omitted
	HasValue bool
	Name     string   // Unknown: the offending token; Ambiguous: the prefix
	Matches  []string // Ambiguous: candidate canonical names
}

// stripBangs splits trailing '!' characters off name, mirroring the
// original's strip_bangs helper.
func stripBangs(tok string) (string, int) {
	trimmed := strings.TrimRight(tok, "!")
	return trimmed, len(tok) - len(trimmed)
}

// Parse tokenizes input and resolves its leading token against reg,
// per original_source/src/command_line/commands/parser/mod.rs's parse.
func Parse(reg *Registry, input string) Parsed {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, ":")
	input = strings.TrimSpace(input)
	if input == "" {
		return Parsed{Kind: Unknown, Name: ""}
	}

	parts := strings.Fields(input)
	head, bangs := stripBangs(parts[0])
	args := parts[1:]

	m := reg.Match(head)
	switch m.Kind {
	case MatchAmbiguous:
		return Parsed{Kind: Ambiguous, Name: m.Name, Matches: m.Matches}
	case MatchUnknown:
		return Parsed{Kind: Unknown, Name: parts[0]}
	}

	switch m.Name {
	case "quit":
		return Parsed{Kind: Quit, Bangs: bangs}
	case "write":
		return Parsed{Kind: Write, Bangs: bangs, Path: strings.Join(args, " ")}
	case "wq":
		return Parsed{Kind: WriteQuit, Bangs: bangs, Path: strings.Join(args, " ")}
	case "edit":
		return Parsed{Kind: Edit, Bangs: bangs, Path: strings.Join(args, " ")}
	case "set", "setlocal":
		k := Set
		if m.Name == "setlocal" {
			k = SetLocal
		}
		if len(args) == 0 {
			return Parsed{Kind: k, Bangs: bangs}
		}
		option, value, hasValue := strings.Cut(args[0], "=")
		return Parsed{Kind: k, Bangs: bangs, Option: option, Value: value, HasValue: hasValue}
	case "bnext":
		return Parsed{Kind: BufferNext, Bangs: bangs}
	case "bprev":
		return Parsed{Kind: BufferPrevious, Bangs: bangs}
	}
	return Parsed{Kind: Unknown, Name: parts[0]}
}
