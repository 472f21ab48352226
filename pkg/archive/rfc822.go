// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// RFC822Message and its Section-free field list implement the email-header-like
// key/value format shared by wheel and sdist metadata: Core Metadata
// (dist-info/METADATA), WHEEL, and PKG-INFO. Unlike a JAR MANIFEST.MF section,
// fields here may repeat (Classifier, Requires-Dist, ...); order and duplicates
// are both preserved so callers can tell single-valued headers (Name, Version)
// from multi-valued ones.

// RFC822Message is a parsed sequence of header fields followed by an optional
// free-form body (used by Core Metadata's long description payload).
type RFC822Message struct {
	Fields []RFC822Field
	Body   string
}

// RFC822Field is one name/value pair, in file order.
type RFC822Field struct {
	Name  string
	Value string
}

// Get returns the first value for name, if any.
func (m *RFC822Message) Get(name string) (string, bool) {
	for _, f := range m.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// GetAll returns every value for name, in file order.
func (m *RFC822Message) GetAll(name string) []string {
	var vals []string
	for _, f := range m.Fields {
		if strings.EqualFold(f.Name, name) {
			vals = append(vals, f.Value)
		}
	}
	return vals
}

// Add appends a field, preserving any existing fields of the same name.
func (m *RFC822Message) Add(name, value string) {
	m.Fields = append(m.Fields, RFC822Field{Name: name, Value: value})
}

// ParseRFC822 parses Core Metadata / WHEEL-style content: "Name: value" lines,
// continuation lines indented with a single space, a blank line separating the
// headers from an optional body.
func ParseRFC822(r io.Reader) (*RFC822Message, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading metadata")
	}
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	msg := &RFC822Message{}
	var name, value string
	flush := func() error {
		if name == "" {
			return nil
		}
		if err := validateFieldName(name); err != nil {
			return err
		}
		msg.Add(name, value)
		return nil
	}
	var inBody bool
	var body strings.Builder
	for sc.Scan() {
		line := sc.Text()
		if inBody {
			body.WriteString(line)
			body.WriteByte('\n')
			continue
		}
		if line == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			name, value = "", ""
			inBody = true
			continue
		}
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			if name == "" {
				return nil, errors.New("unexpected continuation line")
			}
			value += "\n" + strings.TrimPrefix(line, " ")
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
		colon := strings.Index(line, ":")
		if colon == -1 {
			return nil, errors.Errorf("invalid metadata line (missing colon): %q", line)
		}
		name = strings.TrimSpace(line[:colon])
		value = strings.TrimPrefix(line[colon+1:], " ")
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning metadata")
	}
	if !inBody {
		if err := flush(); err != nil {
			return nil, err
		}
	}
	msg.Body = body.String()
	return msg, nil
}

func validateFieldName(name string) error {
	if name == "" {
		return errors.New("empty field name")
	}
	for _, c := range name {
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return fmt.Errorf("invalid character in field name %q: %c", name, c)
		}
	}
	return nil
}

// WriteRFC822 writes fields (and an optional body) back out in Core-Metadata form.
func WriteRFC822(w io.Writer, m *RFC822Message) error {
	for _, f := range m.Fields {
		lines := strings.Split(f.Value, "\n")
		if _, err := fmt.Fprintf(w, "%s: %s\n", f.Name, lines[0]); err != nil {
			return err
		}
		for _, cont := range lines[1:] {
			if _, err := fmt.Fprintf(w, " %s\n", cont); err != nil {
				return err
			}
		}
	}
	if m.Body != "" {
		if _, err := fmt.Fprintf(w, "\n%s", m.Body); err != nil {
			return err
		}
	}
	return nil
}
