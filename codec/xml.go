package codec

import (
	"bytes"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/signadot/odoc/arena"
	"github.com/signadot/odoc/debug"
	"github.com/signadot/odoc/format"
	"github.com/signadot/odoc/ir"
	"github.com/signadot/odoc/token"
)

var xmlEscaper = token.NewEscaper(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
	"\r", "&#13;",
).WithFunc(func(c byte) []byte {
	if c >= 0x20 || c == '\t' || c == '\n' {
		return nil
	}
	return []byte("&#" + strconv.Itoa(int(c)) + ";")
})

var (
	xmlLT       = []byte("<")
	xmlCDATA    = []byte("<![CDATA[")
	xmlCDATAEnd = []byte("]]>")
	xmlComment  = []byte("<!--")
	xmlComEnd   = []byte("-->")
	xmlPI       = []byte("<?")
	xmlPIEnd    = []byte("?>")
	xmlDecl     = []byte("<!")
	xmlEndTag   = []byte("</")
	xmlGT       = []byte(">")
	xmlEmptyEnd = []byte("/>")

	xmlTextName = []byte("#text")

	xmlNameEnd = [][]byte{{' '}, {'\t'}, {'\n'}, {'\r'}, {'/'}, {'>'}, {'='}}
)

func xmlEntities(until ...[]byte) *token.Substitutions {
	return token.NewSubstitutions(until,
		token.Substitution{Token: []byte("&lt;"), Replace: []byte("<")},
		token.Substitution{Token: []byte("&gt;"), Replace: []byte(">")},
		token.Substitution{Token: []byte("&amp;"), Replace: []byte("&")},
		token.Substitution{Token: []byte("&quot;"), Replace: []byte(`"`)},
		token.Substitution{Token: []byte("&apos;"), Replace: []byte("'")},
		token.Substitution{Token: []byte("&#"), Func: xmlCharRef},
		token.Substitution{Token: []byte("&"), Func: func(src *token.Source, dst []byte) ([]byte, error) {
			return dst, errAt(src, "unknown entity")
		}},
	)
}

var (
	xmlText   = xmlEntities(xmlLT)
	xmlAttrDQ = xmlEntities([]byte(`"`), xmlLT)
	xmlAttrSQ = xmlEntities([]byte("'"), xmlLT)
)

// xmlCharRef decodes the rest of a &#N; or &#xH; reference.
func xmlCharRef(src *token.Source, dst []byte) ([]byte, error) {
	b, err := src.ReadBlockUntil(eofAt(src), []byte(";"))
	if err != nil {
		return dst, err
	}
	base := 10
	if len(b) > 0 && b[0] == 'x' {
		base = 16
		b = b[1:]
	}
	x, err := strconv.ParseUint(string(b), base, 32)
	r := rune(x)
	if err != nil || r == 0 || !utf8.ValidRune(r) {
		return dst, errAt(src, "bad character reference %q", b)
	}
	src.Move(1, nil)
	return utf8.AppendRune(dst, r), nil
}

func xmlNameStart(c byte) bool {
	return c == '_' || c == ':' || c >= 0x80 || (c|0x20 >= 'a' && c|0x20 <= 'z')
}

// validXMLName reports whether b can be used as an element name.
func validXMLName(b []byte) bool {
	if len(b) == 0 || !xmlNameStart(b[0]) {
		return false
	}
	for _, c := range b[1:] {
		if !xmlNameStart(c) && c != '-' && c != '.' && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

type xmlFrame struct {
	kind ir.Type
	tag  int // write: start of the tag name in the name stack; read: tag index
	n    int // write: children written; read: children left
}

// xmlTag is one element of a parsed document.
type xmlTag struct {
	name     []byte
	parent   int
	children int
	attrs    int // leading children read from attributes
	first    int // index of the first child
	mixed    bool
	content  []byte
	empty    bool // self-closing
	kind     ir.Type
}

// XML is the codec for a minimal XML rendition of documents.
//
// Objects become elements with one child element per field, arrays become
// elements with one ItemName child per element, and leaves become text.
// Null is an empty element tag. XML does not record types, so on read
// every leaf is a String or Null and scopes are classified by shape: an
// element with two or more children all of one name, or a single ItemName
// child, is an Array; any other element with children is an Object.
// Attributes read as leading child elements, and the text of an element
// with attributes as a last "#text" child, which does not write back as
// XML. Empty scopes do not survive
// a round trip except at the root.
type XML struct {
	input
	indent   int
	rootName []byte
	itemName []byte

	// write
	frames []xmlFrame
	names  []byte

	// read
	tags   []xmlTag
	next   int
	rd     []xmlFrame
	text   []byte
	mem    *arena.Arena
	parsed bool
	done   bool
}

func NewXML(options ...Option) *XML {
	o := makeOpts(options)
	c := &XML{
		indent:   o.indent,
		rootName: []byte(o.rootName),
		itemName: []byte(o.itemName),
		mem:      arena.New(),
	}
	c.init()
	return c
}

func (c *XML) Format() format.Format { return format.XMLFormat }
func (c *XML) Kind() format.Kind     { return format.Text }

func (c *XML) Reset() {
	c.frames = c.frames[:0]
	c.names = c.names[:0]
	clear(c.tags)
	c.tags = c.tags[:0]
	c.next = 0
	c.rd = c.rd[:0]
	c.mem.Reset()
	c.parsed, c.done = false, false
}

func (c *XML) newline(s *token.Sink, depth int) {
	if c.indent == 0 {
		return
	}
	s.WriteByte('\n')
	s.WriteTimes(depth*c.indent, ' ')
}

func (c *XML) Write(name []byte, v ir.Value, s *token.Sink) error {
	t := v.Type()
	if t == ir.EndType {
		if len(c.frames) == 0 {
			return typeErr(format.XMLFormat, v, "no open scope")
		}
		f := c.frames[len(c.frames)-1]
		c.frames = c.frames[:len(c.frames)-1]
		if f.n > 0 {
			c.newline(s, len(c.frames))
		}
		s.Write(xmlEndTag)
		s.Write(c.names[f.tag:])
		s.WriteByte('>')
		c.names = c.names[:f.tag]
		if len(c.frames) == 0 && c.indent > 0 {
			s.WriteByte('\n')
		}
		return s.Err()
	}
	if len(c.frames) == 0 {
		if !t.IsScope() {
			return typeErr(format.XMLFormat, v, "document root must be a scope")
		}
		name = c.rootName
	} else {
		top := &c.frames[len(c.frames)-1]
		top.n++
		if top.kind == ir.ArrayType {
			name = c.itemName
		}
		c.newline(s, len(c.frames))
	}
	if !validXMLName(name) {
		return typeErr(format.XMLFormat, v, "invalid element name "+strconv.Quote(string(name)))
	}
	s.WriteByte('<')
	s.Write(name)
	if t == ir.NullType {
		s.Write(xmlEmptyEnd)
		return s.Err()
	}
	s.WriteByte('>')

	var text []byte
	switch t {
	case ir.ObjectType, ir.ArrayType:
		c.frames = append(c.frames, xmlFrame{kind: t, tag: len(c.names)})
		c.names = append(c.names, name...)
		if debug.Store() {
			debug.Logf("xml write %q %s\n", name, v)
		}
		return s.Err()
	case ir.BoolType:
		text = strconv.AppendBool(nil, v.Word() != 0)
	case ir.I8Type, ir.I16Type, ir.I32Type, ir.I64Type:
		text = strconv.AppendInt(nil, int64(v.Word()), 10)
	case ir.UI8Type, ir.UI16Type, ir.UI32Type, ir.UI64Type:
		text = strconv.AppendUint(nil, v.Word(), 10)
	case ir.FP32Type, ir.FP64Type:
		f, _ := v.Float64()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			text = strconv.AppendFloat(nil, f, 'g', -1, 64)
		} else {
			text = appendJSONFloat(nil, f)
		}
	case ir.StringType:
		s.WriteSubstitute(v.Data(), xmlEscaper)
	case ir.BinaryType:
		text = AppendBase64(nil, v.Data())
	default:
		return typeErr(format.XMLFormat, v, "unknown type")
	}
	s.Write(text)
	s.Write(xmlEndTag)
	s.Write(name)
	s.WriteByte('>')
	return s.Err()
}

func (c *XML) Read(src *token.Source) ([]byte, ir.Value, error) {
	c.src = src
	if !c.parsed {
		c.parsed = true
		if err := c.parse(); err != nil {
			return nil, ir.Value{}, err
		}
		c.classify()
		root := &c.tags[0]
		c.next = 1
		c.rd = append(c.rd, xmlFrame{kind: root.kind, tag: 0, n: root.children})
		return nil, ir.Scope(root.kind), nil
	}
	if c.done || len(c.rd) == 0 {
		return nil, ir.Value{}, c.errf("read past document end")
	}
	top := &c.rd[len(c.rd)-1]
	if top.n == 0 {
		c.rd = c.rd[:len(c.rd)-1]
		c.done = len(c.rd) == 0
		return nil, ir.End(), nil
	}
	top.n--
	i := c.next
	c.next++
	tag := &c.tags[i]
	name := tag.name
	if top.kind == ir.ArrayType {
		name = nil
	}
	var v ir.Value
	switch {
	case tag.kind.IsScope():
		c.rd = append(c.rd, xmlFrame{kind: tag.kind, tag: i, n: tag.children})
		v = ir.Scope(tag.kind)
	case tag.empty:
		v = ir.Null()
	default:
		v = ir.StringBytes(tag.content)
	}
	if debug.Parse() {
		debug.Logf("xml read %q %s\n", name, v)
	}
	return name, v, nil
}

// classify assigns each tag its kind once all children are known.
func (c *XML) classify() {
	for i := range c.tags {
		tag := &c.tags[i]
		switch {
		case tag.children == 0 && i > 0:
			tag.kind = ir.StringType
		case tag.children >= 2 && !tag.mixed,
			tag.children == 1 && bytes.Equal(c.tags[tag.first].name, c.itemName):
			tag.kind = ir.ArrayType
		default:
			tag.kind = ir.ObjectType
		}
	}
}

func (c *XML) addTag(name []byte, parent int) int {
	i := len(c.tags)
	c.tags = append(c.tags, xmlTag{name: c.mem.Copy(name), parent: parent})
	if parent >= 0 {
		p := &c.tags[parent]
		p.children++
		if p.children == 1 {
			p.first = i
		} else if !bytes.Equal(c.tags[p.first].name, name) {
			p.mixed = true
		}
	}
	return i
}

// parse reads the whole document into the flat tag array, in pre-order.
func (c *XML) parse() error {
	src := c.src
	var open []int  // indices of open tags
	var marks []int // start of each open tag's text in c.text
	c.text = c.text[:0]
	for {
		var err error
		if len(open) == 0 {
			src.SkipSpace()
			if src.AtEOF() {
				if len(c.tags) == 0 {
					return c.errf("no root element")
				}
				return nil
			}
		} else {
			c.text, err = src.ReadSubstitute(c.text, xmlText, c.eof)
			if err != nil {
				return err
			}
		}
		switch {
		case src.IsAtToken(xmlComment) == 0:
			if err := c.skipPast(xmlComEnd); err != nil {
				return err
			}
		case src.IsAtToken(xmlPI) == 0:
			if err := c.skipPast(xmlPIEnd); err != nil {
				return err
			}
		case src.IsAtToken(xmlCDATA) == 0:
			if len(open) == 0 {
				return c.errf("character data outside the root element")
			}
			src.Move(len(xmlCDATA), nil)
			b, err := src.ReadBlockUntil(c.eof, xmlCDATAEnd)
			if err != nil {
				return err
			}
			c.text = append(c.text, b...)
			src.Move(len(xmlCDATAEnd), nil)
		case src.IsAtToken(xmlDecl) == 0:
			if len(c.tags) > 0 {
				return c.errf("declaration after the root element")
			}
			if err := c.skipDoctype(); err != nil {
				return err
			}
		case src.IsAtToken(xmlEndTag) == 0:
			if len(open) == 0 {
				return c.errf("unmatched end tag")
			}
			src.Move(len(xmlEndTag), nil)
			name, err := src.ReadBlockUntil(c.eof, xmlNameEnd...)
			if err != nil {
				return err
			}
			i := open[len(open)-1]
			if !bytes.Equal(name, c.tags[i].name) {
				return c.errf("end tag %q does not match <%s>", name, c.tags[i].name)
			}
			src.SkipSpace()
			if err := c.expect(xmlGT); err != nil {
				return err
			}
			if err := c.closeTag(i, marks[len(marks)-1]); err != nil {
				return err
			}
			open, marks = open[:len(open)-1], marks[:len(marks)-1]
		default:
			if lt, err := src.Next(c.eof); err != nil {
				return err
			} else if lt != '<' {
				return c.errf("character data outside the root element")
			}
			if len(open) == 0 && len(c.tags) > 0 {
				return c.errf("more than one root element")
			}
			parent := -1
			if len(open) > 0 {
				parent = open[len(open)-1]
				mark := marks[len(marks)-1]
				if !allSpace(c.text[mark:]) {
					return c.errf("text mixed with elements in <%s>", c.tags[parent].name)
				}
				c.text = c.text[:mark]
			}
			i, closed, err := c.readStartTag(parent)
			if err != nil {
				return err
			}
			if closed {
				c.tags[i].empty = c.tags[i].children == 0
				continue
			}
			open = append(open, i)
			marks = append(marks, len(c.text))
		}
	}
}

func (c *XML) expect(tok []byte) error {
	if c.src.IsAtToken(tok) != 0 {
		if c.src.AtEOF() {
			return c.eof(len(tok))
		}
		return c.errf("want %q", tok)
	}
	return c.src.Move(len(tok), nil)
}

func (c *XML) skipPast(end []byte) error {
	if _, err := c.src.MoveUntil(c.eof, nil, end); err != nil {
		return err
	}
	return c.src.Move(len(end), nil)
}

// skipDoctype skips a <!...> declaration including an internal subset.
func (c *XML) skipDoctype() error {
	if _, err := c.src.MoveUntil(c.eof, nil, []byte("["), xmlGT); err != nil {
		return err
	}
	if c.src.IsAtToken([]byte("[")) == 0 {
		if err := c.skipPast([]byte("]")); err != nil {
			return err
		}
	}
	return c.skipPast(xmlGT)
}

// closeTag finishes an element whose text starts at mark. Text next to
// attributes becomes a last "#text" child.
func (c *XML) closeTag(i, mark int) error {
	tag := &c.tags[i]
	text := c.text[mark:]
	switch {
	case tag.children > tag.attrs:
		if !allSpace(text) {
			return c.errf("text mixed with elements in <%s>", tag.name)
		}
	case tag.attrs > 0:
		if !allSpace(text) {
			t := c.addTag(xmlTextName, i)
			c.tags[t].content = c.mem.Copy(text)
		}
	default:
		tag.content = c.mem.Copy(text)
	}
	c.text = c.text[:mark]
	return nil
}

// readStartTag reads a start tag after its '<' and its attributes, which
// become leaf children. It reports whether the tag closed itself.
func (c *XML) readStartTag(parent int) (int, bool, error) {
	src := c.src
	name, err := src.ReadBlockUntil(c.eof, xmlNameEnd...)
	if err != nil {
		return 0, false, err
	}
	if len(name) == 0 || !xmlNameStart(name[0]) {
		return 0, false, c.errf("bad element name %q", name)
	}
	i := c.addTag(name, parent)
	for {
		src.SkipSpace()
		switch {
		case src.IsAtToken(xmlEmptyEnd) == 0:
			src.Move(len(xmlEmptyEnd), nil)
			return i, true, nil
		case src.IsAtToken(xmlGT) == 0:
			src.Move(len(xmlGT), nil)
			return i, false, nil
		}
		attr, err := src.ReadBlockUntil(c.eof, xmlNameEnd...)
		if err != nil {
			return 0, false, err
		}
		if len(attr) == 0 {
			return 0, false, c.errf("bad attribute in <%s>", c.tags[i].name)
		}
		a := c.addTag(attr, i)
		c.tags[i].attrs++
		src.SkipSpace()
		if err := c.expect([]byte("=")); err != nil {
			return 0, false, err
		}
		src.SkipSpace()
		q, err := src.Next(c.eof)
		if err != nil {
			return 0, false, err
		}
		sub := xmlAttrDQ
		switch q {
		case '"':
		case '\'':
			sub = xmlAttrSQ
		default:
			return 0, false, c.errf("unquoted attribute value")
		}
		mark := len(c.text)
		c.text, err = src.ReadSubstitute(c.text, sub, c.eof)
		if err != nil {
			return 0, false, err
		}
		if err := c.expect([]byte{q}); err != nil {
			return 0, false, err
		}
		c.tags[a].content = c.mem.Copy(c.text[mark:])
		c.text = c.text[:mark]
	}
}
