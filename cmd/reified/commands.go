package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/movegen/reified/pkg/reified"
	"github.com/movegen/reified/pkg/source"
)

// flagSet is the part of *flag.FlagSet the shared flags need.
type flagSet interface {
	Var(value flag.Value, name string, usage string)
	BoolVar(p *bool, name string, value bool, usage string)
}

func newFlagSet(name string, errOut io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(errOut)
	return fs
}

func cmdDecode(args []string, in io.Reader, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("decode", errOut)
	var c common
	c.register(fs)
	var typ, format string
	fs.StringVar(&typ, "type", "", "full type tag of the value")
	fs.StringVar(&format, "in", "bcs", "input format: bcs, hex, base64, fields, typed or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if typ == "" {
		fmt.Fprintln(errOut, "usage: reified decode --type <tag> [--in format] [<file>|-]")
		return 2
	}
	reg, err := c.registry(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "load declarations: %v\n", err)
		return 1
	}
	desc, err := reg.ResolveStruct(typ)
	if err != nil {
		fmt.Fprintf(errOut, "resolve %s: %v\n", typ, err)
		return 1
	}
	data, err := readInput(fs.Args(), in)
	if err != nil {
		fmt.Fprintf(errOut, "read input: %v\n", err)
		return 1
	}
	inst, err := decode(desc, format, data)
	if err != nil {
		fmt.Fprintf(errOut, "decode: %v\n", err)
		return 1
	}
	if err := c.writeJSON(out, inst.ToJSON()); err != nil {
		fmt.Fprintf(errOut, "write: %v\n", err)
		return 1
	}
	return 0
}

func decode(desc *reified.Struct, format string, data []byte) (*reified.Instance, error) {
	switch format {
	case "bcs":
		return desc.FromBCS(data)
	case "hex":
		raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(string(data)), "0x"))
		if err != nil {
			return nil, err
		}
		return desc.FromBCS(raw)
	case "base64":
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, err
		}
		return desc.FromBCS(raw)
	case "json":
		return desc.FromJSONBytes(data)
	case "fields":
		var fields map[string]any
		if err := unmarshalNumbers(data, &fields); err != nil {
			return nil, err
		}
		return desc.FromFields(fields)
	case "typed":
		var item reified.FieldsWithTypes
		if err := unmarshalNumbers(data, &item); err != nil {
			return nil, err
		}
		return desc.FromFieldsWithTypes(item)
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
}

func unmarshalNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func cmdEncode(args []string, in io.Reader, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("encode", errOut)
	var c common
	c.register(fs)
	var typ, format string
	fs.StringVar(&typ, "type", "", "full type tag of the value")
	fs.StringVar(&format, "out", "hex", "output format: hex, base64 or bcs")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if typ == "" {
		fmt.Fprintln(errOut, "usage: reified encode --type <tag> [--out format] [<json file>|-]")
		return 2
	}
	reg, err := c.registry(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "load declarations: %v\n", err)
		return 1
	}
	desc, err := reg.ResolveStruct(typ)
	if err != nil {
		fmt.Fprintf(errOut, "resolve %s: %v\n", typ, err)
		return 1
	}
	data, err := readInput(fs.Args(), in)
	if err != nil {
		fmt.Fprintf(errOut, "read input: %v\n", err)
		return 1
	}
	inst, err := desc.FromJSONBytes(data)
	if err != nil {
		fmt.Fprintf(errOut, "decode: %v\n", err)
		return 1
	}
	encoded, err := inst.ToBCS()
	if err != nil {
		fmt.Fprintf(errOut, "encode: %v\n", err)
		return 1
	}
	switch format {
	case "hex":
		fmt.Fprintln(out, "0x"+hex.EncodeToString(encoded))
	case "base64":
		fmt.Fprintln(out, base64.StdEncoding.EncodeToString(encoded))
	case "bcs":
		_, _ = out.Write(encoded)
	default:
		fmt.Fprintf(errOut, "unknown output format %q\n", format)
		return 2
	}
	return 0
}

func cmdLayout(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("layout", errOut)
	var c common
	c.register(fs)
	var typ string
	var asJSON bool
	fs.StringVar(&typ, "type", "", "full type tag")
	fs.BoolVar(&asJSON, "json", false, "print the layout as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if typ == "" {
		fmt.Fprintln(errOut, "usage: reified layout --type <tag> [--json]")
		return 2
	}
	reg, err := c.registry(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "load declarations: %v\n", err)
		return 1
	}
	arg, err := reg.Resolve(typ)
	if err != nil {
		fmt.Fprintf(errOut, "resolve %s: %v\n", typ, err)
		return 1
	}
	layout, err := reified.LayoutOf(arg)
	if err != nil {
		fmt.Fprintf(errOut, "layout: %v\n", err)
		return 1
	}
	if asJSON {
		if err := c.writeJSON(out, layout); err != nil {
			fmt.Fprintf(errOut, "write: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprint(out, layout.String())
	if w, ok := layout.FixedWidth(); ok {
		fmt.Fprintf(out, "fixed width: %d bytes\n", w)
	}
	return 0
}

func cmdFetch(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("fetch", errOut)
	var c common
	c.register(fs)
	var id, typ, node, dir, save string
	var compress bool
	var timeout time.Duration
	fs.StringVar(&id, "id", "", "object id")
	fs.StringVar(&typ, "type", "", "expected full type tag (default: the reported type)")
	fs.StringVar(&node, "node", "", "websocket JSON-RPC endpoint")
	fs.StringVar(&dir, "dir", "", "directory of object dumps")
	fs.StringVar(&save, "save", "", "also dump the fetched object into this directory")
	fs.BoolVar(&compress, "compress", false, "brotli-compress saved dumps")
	fs.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if id == "" || (node == "") == (dir == "") {
		fmt.Fprintln(errOut, "usage: reified fetch --id <object id> (--node <ws url> | --dir <dump dir>) [--type <tag>]")
		return 2
	}
	objectID, err := reified.ParseAddr(id)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --id: %v\n", err)
		return 2
	}
	reg, err := c.registry(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "load declarations: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var src source.Source
	if node != "" {
		var opts []source.Option
		if l := c.logger(errOut); l != nil {
			opts = append(opts, source.WithLogger(l))
		}
		client, err := source.Dial(ctx, node, opts...)
		if err != nil {
			fmt.Fprintf(errOut, "connect: %v\n", err)
			return 1
		}
		defer client.Close()
		src = client
	} else {
		src = source.NewDirSource(dir)
	}

	obj, err := src.GetObject(ctx, objectID)
	if err != nil {
		fmt.Fprintf(errOut, "fetch: %v\n", err)
		return 1
	}
	if typ == "" {
		typ = obj.TypeName()
	}
	desc, err := reg.ResolveStruct(typ)
	if err != nil {
		fmt.Fprintf(errOut, "resolve %s: %v\n", typ, err)
		return 1
	}
	inst, err := source.Decode(desc, obj)
	if err != nil {
		fmt.Fprintf(errOut, "decode: %v\n", err)
		return 1
	}
	if save != "" {
		path, err := source.NewDirSource(save).Save(obj, compress)
		if err != nil {
			fmt.Fprintf(errOut, "save: %v\n", err)
			return 1
		}
		if c.verbose {
			fmt.Fprintf(errOut, "saved %s\n", path)
		}
	}
	if err := c.writeJSON(out, inst.ToJSON()); err != nil {
		fmt.Fprintf(errOut, "write: %v\n", err)
		return 1
	}
	return 0
}

func cmdTypes(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("types", errOut)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	reg, err := c.registry(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "load declarations: %v\n", err)
		return 1
	}
	for _, name := range reg.Names() {
		d, _ := reg.Lookup(name)
		fmt.Fprintln(out, d.Tag().Display())
	}
	return 0
}
