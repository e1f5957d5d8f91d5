// llsd - LLSD codec CLI tool
//
// Usage:
//
//	llsd conv [--from=FMT] [--to=FMT] [file]   Convert between encodings
//	llsd fmt [file]                            Pretty-print notation
//	llsd rpc decode [file]                     Decode an XML-RPC envelope
//	llsd rpc call <method> [file]              Wrap notation input in a methodCall
//	llsd version                               Print version info
//
// FMT is one of: binary, xml, notation. The input format is auto-detected
// when --from is omitted. If no file is given, reads from stdin.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/openmeta/llsd/llsd"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	if cmd == "rpc" {
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "llsd rpc: missing subcommand (decode, call)")
			os.Exit(1)
		}
		switch sub := os.Args[2]; sub {
		case "decode":
			cmdRPCDecode(openInput(os.Args[3:]))
		case "call":
			if len(os.Args) < 4 {
				fatal("rpc call: missing method name")
			}
			cmdRPCCall(os.Args[3], openInput(os.Args[4:]))
		default:
			fmt.Fprintf(os.Stderr, "llsd rpc: unknown subcommand: %s\n", sub)
			os.Exit(1)
		}
		return
	}

	from := ""
	to := "notation"
	pretty := false
	header := false
	var files []string
	for _, arg := range os.Args[2:] {
		switch {
		case strings.HasPrefix(arg, "--from="):
			from = strings.TrimPrefix(arg, "--from=")
		case strings.HasPrefix(arg, "--to="):
			to = strings.TrimPrefix(arg, "--to=")
		case arg == "--pretty":
			pretty = true
		case arg == "--header":
			header = true
		default:
			if !strings.HasPrefix(arg, "-") && arg != "-" {
				files = append(files, arg)
			}
		}
	}

	switch cmd {
	case "conv":
		cmdConv(openInput(files), from, to, pretty, header)
	case "fmt":
		cmdFmt(openInput(files))
	case "version", "-v", "--version":
		fmt.Printf("llsd %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `llsd - LLSD codec CLI tool

Usage:
  llsd conv [options] [file]     Convert between binary, xml and notation
  llsd fmt [file]                Pretty-print notation
  llsd rpc decode [file]         Decode an XML-RPC envelope, print notation
  llsd rpc call <method> [file]  Wrap notation input in an XML-RPC methodCall
  llsd version                   Print version info

Options:
  --from=FMT    Input format: binary, xml, notation (default: auto-detect)
  --to=FMT      Output format: binary, xml, notation (default: notation)
  --pretty      Indent xml/notation output
  --header      Prepend the "<? LLSD/Binary ?>" header to binary output

If no file is given, reads from stdin.

Examples:
  echo "{'a':i1,'b':[true,r2.5]}" | llsd conv --to=xml --pretty
  llsd conv --from=xml --to=binary doc.xml > doc.bin
  cat doc.bin | llsd fmt
`)
}

func openInput(args []string) io.Reader {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") && arg != "-" {
			f, err := os.Open(arg)
			if err != nil {
				fatal("open file: %v", err)
			}
			return f
		}
	}
	return os.Stdin
}

func readAll(r io.Reader) []byte {
	data, err := io.ReadAll(r)
	if err != nil {
		fatal("read input: %v", err)
	}
	return data
}

// detectFormat sniffs the encoding: the binary header line, an XML
// document, or notation for everything else.
func detectFormat(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "notation"
	}
	if trimmed[0] == '<' {
		if bytes.Contains(trimmed[:min(len(trimmed), 64)], []byte("LLSD/Binary")) {
			return "binary"
		}
		return "xml"
	}
	return "notation"
}

func decode(data []byte, format string) *llsd.Value {
	var (
		v   *llsd.Value
		err error
	)
	switch format {
	case "binary":
		v, err = llsd.UnmarshalBinary(data)
	case "xml":
		v, err = llsd.UnmarshalXML(data)
	case "notation":
		v, err = llsd.UnmarshalNotation(data)
	default:
		fatal("unknown input format: %s", format)
	}
	if err != nil {
		fatal("decode %s: %v", format, err)
	}
	return v
}

func cmdConv(r io.Reader, from, to string, pretty, header bool) {
	data := readAll(r)
	if from == "" {
		from = detectFormat(data)
	}
	v := decode(data, from)

	switch to {
	case "binary":
		out := llsd.MarshalBinary(v)
		if header {
			out = llsd.AppendBinaryHeader(out)
		}
		os.Stdout.Write(out)
	case "xml":
		if pretty {
			fmt.Println(string(llsd.MarshalXMLIndent(v)))
		} else {
			fmt.Println(string(llsd.MarshalXML(v)))
		}
	case "notation":
		opts := llsd.DefaultNotationOptions()
		opts.Pretty = pretty
		fmt.Println(string(llsd.MarshalNotationOptions(v, opts)))
	default:
		fatal("unknown output format: %s", to)
	}
}

func cmdFmt(r io.Reader) {
	data := readAll(r)
	v := decode(data, detectFormat(data))
	opts := llsd.DefaultNotationOptions()
	opts.Pretty = true
	fmt.Println(string(llsd.MarshalNotationOptions(v, opts)))
}

func cmdRPCDecode(r io.Reader) {
	env, err := llsd.UnmarshalXMLRPC(readAll(r))
	if err != nil {
		fatal("decode xml-rpc: %v", err)
	}
	switch {
	case env.IsCall():
		fmt.Printf("call %s\n", env.Method())
	case env.IsFault():
		fmt.Println("fault")
	default:
		fmt.Println("response")
	}
	opts := llsd.DefaultNotationOptions()
	opts.Pretty = true
	fmt.Println(string(llsd.MarshalNotationOptions(env.Value(), opts)))
}

func cmdRPCCall(method string, r io.Reader) {
	v := decode(readAll(r), "notation")
	out, err := llsd.MarshalXMLRPC(llsd.NewMethodCall(method, v))
	if err != nil {
		fatal("encode xml-rpc: %v", err)
	}
	fmt.Println(string(out))
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "llsd: "+format+"\n", args...)
	os.Exit(1)
}
