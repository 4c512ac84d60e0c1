// =============================================================================
// CSV to OFX Converter - XML Writer Module
// =============================================================================
//
// This module holds a small element tree and the serializer that turns it
// into text. It knows nothing about OFX; the ofx package builds the tree.
//
// OUTPUT SHAPE:
//   The default options produce the compact form importers expect:
//
//   <?xml version='1.0' encoding='utf-8'?>
//   <OFX><SIGNONMSGSRSV1><SONRS>...<FI /></SONRS></SIGNONMSGSRSV1>...</OFX>
//
//   - One declaration line, then the whole tree with no whitespace.
//   - Elements without text or children are written as "<TAG />".
//   - Text escapes &, < and >.
//   - No trailing newline.
//
//   Setting Indent switches to one element per line.
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// =============================================================================
// ELEMENT TREE
// =============================================================================

// XMLElement is one node of the tree.
type XMLElement struct {
	XMLName  xml.Name
	Value    string
	Children []*XMLElement
}

// NewElement creates a detached element.
func NewElement(name string) *XMLElement {
	return &XMLElement{XMLName: xml.Name{Local: name}}
}

// Add appends an empty child element and returns it.
func (e *XMLElement) Add(name string) *XMLElement {
	child := NewElement(name)
	e.Children = append(e.Children, child)
	return child
}

// AddText appends a child element holding value and returns it.
func (e *XMLElement) AddText(name, value string) *XMLElement {
	child := e.Add(name)
	child.Value = value
	return child
}

// =============================================================================
// XML GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for XML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: "" (compact, single line)
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// XMLVersion is the XML version for the declaration.
	// Default: "1.0"
	XMLVersion string

	// Encoding is the encoding named in the declaration.
	// Default: "utf-8"
	Encoding string
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                "",
		IncludeXMLDeclaration: true,
		XMLVersion:            "1.0",
		Encoding:              "utf-8",
	}
}

// =============================================================================
// XML GENERATION FUNCTIONS
// =============================================================================

// GenerateWithOptions serializes root with custom options.
func GenerateWithOptions(root *XMLElement, options GenerateOptions) []byte {
	var buffer bytes.Buffer

	if options.IncludeXMLDeclaration {
		buffer.WriteString(fmt.Sprintf("<?xml version='%s' encoding='%s'?>\n",
			options.XMLVersion, options.Encoding))
	}

	writeElement(&buffer, root, options.Indent, 0)

	return buffer.Bytes()
}

// writeElement writes an element and its subtree.
func writeElement(buffer *bytes.Buffer, element *XMLElement, indent string, level int) {
	pretty := indent != ""
	if pretty {
		buffer.WriteString(strings.Repeat(indent, level))
	}

	buffer.WriteString("<")
	buffer.WriteString(element.XMLName.Local)

	if len(element.Children) == 0 && element.Value == "" {
		buffer.WriteString(" />")
		if pretty {
			buffer.WriteString("\n")
		}
		return
	}

	buffer.WriteString(">")
	buffer.WriteString(escapeText(element.Value))

	if len(element.Children) > 0 {
		if pretty {
			buffer.WriteString("\n")
		}
		for _, child := range element.Children {
			writeElement(buffer, child, indent, level+1)
		}
		if pretty {
			buffer.WriteString(strings.Repeat(indent, level))
		}
	}

	buffer.WriteString("</")
	buffer.WriteString(element.XMLName.Local)
	buffer.WriteString(">")
	if pretty {
		buffer.WriteString("\n")
	}
}

// escapeText escapes character data.
func escapeText(s string) string {
	if !strings.ContainsAny(s, "&<>") {
		return s
	}

	var buffer bytes.Buffer
	for _, r := range s {
		switch r {
		case '&':
			buffer.WriteString("&amp;")
		case '<':
			buffer.WriteString("&lt;")
		case '>':
			buffer.WriteString("&gt;")
		default:
			buffer.WriteRune(r)
		}
	}

	return buffer.String()
}
