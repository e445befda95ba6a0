package token

// Substitution replaces Token while reading. When Func is set it is called
// after Token has been consumed and may read further input from src; it
// returns dst with the decoded bytes appended.
type Substitution struct {
	Token   []byte
	Replace []byte
	Func    func(src *Source, dst []byte) ([]byte, error)
}

// Substitutions is a prepared set of read substitutions together with the
// terminators ending a substituted read.
type Substitutions struct {
	until  [][]byte
	tokens [][]byte
	subs   []Substitution
	first  [256]bool
}

// NewSubstitutions prepares subs for Source.ReadSubstitute. A read stops
// in front of any token in until.
func NewSubstitutions(until [][]byte, subs ...Substitution) *Substitutions {
	t := &Substitutions{until: until, subs: subs}
	for _, u := range until {
		if len(u) > 0 {
			t.first[u[0]] = true
		}
	}
	for _, s := range subs {
		t.tokens = append(t.tokens, s.Token)
		if len(s.Token) > 0 {
			t.first[s.Token[0]] = true
		}
	}
	return t
}

// Escaper rewrites bytes on output using a per-byte replacement table.
type Escaper struct {
	table [256][]byte
}

// NewEscaper builds an Escaper from (byte, replacement) pairs.
func NewEscaper(pairs ...string) *Escaper {
	if len(pairs)%2 != 0 {
		panic("token: odd escaper pair count")
	}
	e := &Escaper{}
	for i := 0; i < len(pairs); i += 2 {
		if len(pairs[i]) != 1 {
			panic("token: escaper token must be a single byte")
		}
		e.table[pairs[i][0]] = []byte(pairs[i+1])
	}
	return e
}

// WithFunc fills every byte without a replacement from f; f returns nil
// for bytes written as is.
func (e *Escaper) WithFunc(f func(c byte) []byte) *Escaper {
	for c := range 256 {
		if e.table[c] == nil {
			e.table[c] = f(byte(c))
		}
	}
	return e
}

// Escapes reports whether c is rewritten.
func (e *Escaper) Escapes(c byte) bool {
	return e.table[c] != nil
}

// Append appends src to dst with escapes applied.
func (e *Escaper) Append(dst, src []byte) []byte {
	start := 0
	for i := 0; i < len(src); i++ {
		if r := e.table[src[i]]; r != nil {
			dst = append(dst, src[start:i]...)
			dst = append(dst, r...)
			start = i + 1
		}
	}
	return append(dst, src[start:]...)
}
