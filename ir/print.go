package ir

import "strconv"

// String renders the resident part of n as compact JSON like text. It
// never reads input; fields not read yet are shown as "...".
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	return string(n.appendText(nil))
}

func (n *Node) appendText(dst []byte) []byte {
	lb, rb := byte('{'), byte('}')
	if n.kind == ArrayType {
		lb, rb = '[', ']'
	}
	dst = append(dst, lb)
	for f := n.head; f != nil; f = f.next {
		if f != n.head {
			dst = append(dst, ',')
		}
		if n.kind == ObjectType {
			dst = strconv.AppendQuote(dst, f.Name.s)
			dst = append(dst, ':')
		}
		if f.Node != nil {
			dst = f.Node.appendText(dst)
		} else {
			dst = f.Value.appendText(dst)
		}
	}
	if n.state != Parsed {
		if n.head != nil {
			dst = append(dst, ',')
		}
		dst = append(dst, "..."...)
	}
	return append(dst, rb)
}
