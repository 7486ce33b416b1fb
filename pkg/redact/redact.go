// Package redact obfuscates personally identifiable values in log output.
package redact

import (
	"bytes"
	"io"
	"regexp"
)

const (
	Redaction = "***"
	Separator = ";"
)

// PIIFields are the attributes redacted by default.
var PIIFields = []string{"email", "password", "session_id", "reset_token", "hashed_password"}

// FilterDatum replaces the value of every `field=value<separator>` occurrence
// in message with redaction. Values are matched up to the nearest separator.
func FilterDatum(fields []string, redaction, message, separator string) string {
	return NewFilter(fields, redaction, separator).Apply(message)
}

type rule struct {
	re   *regexp.Regexp
	repl string
}

// Filter is a precompiled FilterDatum for a fixed field set.
type Filter struct {
	separator string
	kv        []rule
	json      []rule
}

func NewFilter(fields []string, redaction, separator string) *Filter {
	f := &Filter{separator: separator}
	sep := regexp.QuoteMeta(separator)
	for _, field := range fields {
		name := regexp.QuoteMeta(field)
		f.kv = append(f.kv, rule{
			re:   regexp.MustCompile(name + `=(.*?)` + sep),
			repl: field + "=" + redaction + separator,
		})
		f.json = append(f.json, rule{
			re:   regexp.MustCompile(`"` + name + `":"(?:[^"\\]|\\.)*"`),
			repl: `"` + field + `":"` + redaction + `"`,
		})
	}
	return f
}

// Apply redacts key=value pairs in message.
func (f *Filter) Apply(message string) string {
	for _, r := range f.kv {
		message = r.re.ReplaceAllLiteralString(message, r.repl)
	}
	return message
}

// ApplyJSON redacts string members of a JSON object.
func (f *Filter) ApplyJSON(message string) string {
	for _, r := range f.json {
		message = r.re.ReplaceAllLiteralString(message, r.repl)
	}
	return message
}

// Writer redacts each line before handing it to the wrapped writer. JSON
// lines get the JSON rule; anything else is treated as key=value text where
// the end of a line also terminates a value.
type Writer struct {
	out    io.Writer
	filter *Filter
}

func NewWriter(out io.Writer, fields []string, separator string) *Writer {
	if separator == "" {
		separator = Separator
	}
	return &Writer{out: out, filter: NewFilter(fields, Redaction, separator)}
}

func (w *Writer) Write(p []byte) (int, error) {
	lines := bytes.SplitAfter(p, []byte("\n"))
	var buf bytes.Buffer
	buf.Grow(len(p))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		body := bytes.TrimSuffix(line, []byte("\n"))
		buf.WriteString(w.redactLine(string(body)))
		if len(body) != len(line) {
			buf.WriteByte('\n')
		}
	}
	if _, err := w.out.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *Writer) redactLine(line string) string {
	if len(line) > 0 && line[0] == '{' {
		return w.filter.ApplyJSON(line)
	}
	sep := w.filter.separator
	out := w.filter.Apply(line + sep)
	return out[:len(out)-len(sep)]
}
