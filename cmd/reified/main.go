package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/movegen/reified/pkg/decl"
	"github.com/movegen/reified/pkg/reified"
	"github.com/movegen/reified/pkg/stdlib"
)

const envDecls = "REIFIED_DECLS"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, in io.Reader, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "decode":
		return cmdDecode(args[1:], in, out, errOut)
	case "encode":
		return cmdEncode(args[1:], in, out, errOut)
	case "layout":
		return cmdLayout(args[1:], out, errOut)
	case "fetch":
		return cmdFetch(args[1:], out, errOut)
	case "types":
		return cmdTypes(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "reified: decode and encode on-chain struct values")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  reified decode --type <tag> [--in bcs|hex|base64|fields|typed|json] [<file>|-]")
	fmt.Fprintln(w, "  reified encode --type <tag> [--out hex|base64|bcs] [<json file>|-]")
	fmt.Fprintln(w, "  reified layout --type <tag> [--json]")
	fmt.Fprintln(w, "  reified fetch --id <object id> (--node <ws url> | --dir <dump dir>) [--type <tag>] [--save <dir> [--compress]]")
	fmt.Fprintln(w, "  reified types")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Common flags:")
	fmt.Fprintln(w, "  --decls <path>   declaration file or directory, repeatable (default $"+envDecls+")")
	fmt.Fprintln(w, "  --pretty         indent JSON output (default when writing to a terminal)")
	fmt.Fprintln(w, "  -v               log registry and source events to stderr")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - the framework types (0x1 string/ascii/option, 0x2 object/coin/balance/...) are always loaded")
	fmt.Fprintln(w, "  - decode prints the canonical JSON form with $typeName and $typeArgs")
}

// pathList collects repeated --decls flags.
type pathList []string

func (p *pathList) String() string { return strings.Join(*p, string(filepath.ListSeparator)) }

func (p *pathList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

// common holds the flags every command shares.
type common struct {
	decls   pathList
	pretty  bool
	verbose bool
}

func (c *common) register(fs flagSet) {
	fs.Var(&c.decls, "decls", "declaration file or directory (repeatable)")
	fs.BoolVar(&c.pretty, "pretty", false, "indent JSON output")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging to stderr")
}

// registry builds the registry from the framework declarations and the
// --decls paths, falling back to $REIFIED_DECLS.
func (c *common) registry(errOut io.Writer) (*reified.Registry, error) {
	reg, err := stdlib.NewRegistry(reified.RegistryOptions{Logger: c.logger(errOut)})
	if err != nil {
		return nil, err
	}
	paths := []string(c.decls)
	if len(paths) == 0 {
		if env := os.Getenv(envDecls); env != "" {
			paths = filepath.SplitList(env)
		}
	}
	if len(paths) == 0 {
		return reg, nil
	}
	decls, err := decl.LoadPaths(paths...)
	if err != nil {
		return nil, err
	}
	if err := reg.RegisterAll(decls); err != nil {
		return nil, err
	}
	return reg, nil
}

func (c *common) logger(errOut io.Writer) *log.Logger {
	if !c.verbose {
		return nil
	}
	return log.New(errOut, "", log.LstdFlags)
}

// writeJSON prints v, indented when requested or when out is a terminal.
func (c *common) writeJSON(out io.Writer, v any) error {
	var data []byte
	var err error
	if c.pretty || isTerminal(out) {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = out.Write(data)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// readInput reads the file named by the single positional argument, or in
// when it is absent or "-".
func readInput(args []string, in io.Reader) ([]byte, error) {
	switch {
	case len(args) == 0 || args[0] == "-":
		return io.ReadAll(in)
	case len(args) == 1:
		return os.ReadFile(args[0])
	default:
		return nil, fmt.Errorf("expected at most one input, got %d", len(args))
	}
}
