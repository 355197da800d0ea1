// pdfinspect opens a PDF, prints what the object store knows about it, and
// can rewrite the document through the serializer.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/wudi/pdfstore/object"
	"github.com/wudi/pdfstore/observability"
	"github.com/wudi/pdfstore/store"
	"github.com/wudi/pdfstore/writer"
)

type options struct {
	pdfPath string
	objects bool
	pages   bool
	trailer bool
	rewrite string
	verbose bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfinspect: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "pdfinspect: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: go run ./cmd/pdfinspect [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	objects := flag.Bool("objects", false, "List every indirect object with its type")
	pages := flag.Bool("pages", false, "List the flattened page tree")
	trailer := flag.Bool("trailer", false, "Dump the trailer dictionary")
	rewrite := flag.String("rewrite", "", "Rewrite the document to the given path")
	verbose := flag.Bool("v", false, "Log internal diagnostics to stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, errors.New("missing pdf path")
	}
	opts.pdfPath = flag.Arg(0)
	opts.objects = *objects
	opts.pages = *pages
	opts.trailer = *trailer
	opts.rewrite = *rewrite
	opts.verbose = *verbose
	return opts, nil
}

func run(opts options) error {
	var storeOpts []store.Option
	if opts.verbose {
		storeOpts = append(storeOpts, store.WithLogger(stderrLogger{}))
	}
	s, err := store.Open(opts.pdfPath, storeOpts...)
	if err != nil {
		return err
	}

	summary := map[string]any{
		"version": s.Version(),
		"objects": s.Len(),
		"pages":   len(s.PageRefs()),
	}
	if opts.trailer {
		summary["trailer"] = dictSummary(s.Trailer())
	}
	if opts.objects {
		var list []map[string]any
		for _, ref := range s.Refs() {
			entry := map[string]any{"ref": ref.String()}
			if typ := s.TypeOf(ref); typ != "" {
				entry["type"] = string(typ)
			}
			if s.IsStream(ref) {
				entry["stream"] = true
			}
			list = append(list, entry)
		}
		summary["objectList"] = list
	}
	if opts.pages {
		var refs []string
		for _, ref := range s.PageRefs() {
			refs = append(refs, ref.String())
		}
		summary["pageRefs"] = refs
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return err
	}

	if opts.rewrite != "" {
		if err := writer.Persist(s, opts.rewrite); err != nil {
			return fmt.Errorf("rewrite: %w", err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", opts.rewrite)
	}
	return nil
}

// dictSummary flattens a dictionary into JSON-friendly values, one level deep.
func dictSummary(d *object.Dict) map[string]string {
	out := make(map[string]string, d.Len())
	for _, key := range d.Keys() {
		val, _ := d.Get(key)
		switch v := val.(type) {
		case object.Ref:
			out[string(key)] = v.String()
		case object.Name:
			out[string(key)] = v.String()
		case object.Number:
			out[string(key)] = v.String()
		case object.String:
			out[string(key)] = string(v)
		default:
			out[string(key)] = fmt.Sprintf("%T", val)
		}
	}
	return out
}

// stderrLogger satisfies observability.Logger for -v runs.
type stderrLogger struct{}

func (stderrLogger) Debug(msg string, fields ...observability.Field) { logLine("DEBUG", msg, fields) }
func (stderrLogger) Info(msg string, fields ...observability.Field)  { logLine("INFO", msg, fields) }
func (stderrLogger) Warn(msg string, fields ...observability.Field)  { logLine("WARN", msg, fields) }
func (stderrLogger) Error(msg string, fields ...observability.Field) { logLine("ERROR", msg, fields) }

func logLine(level, msg string, fields []observability.Field) {
	fmt.Fprintf(os.Stderr, "%s %s", level, msg)
	for _, f := range fields {
		fmt.Fprintf(os.Stderr, " %s=%v", f.Key, f.Value)
	}
	fmt.Fprintln(os.Stderr)
}
