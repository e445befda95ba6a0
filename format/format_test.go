package format

import (
	"errors"
	"testing"
)

func TestParseFormat(t *testing.T) {
	for _, f := range AllFormats() {
		d, err := f.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var g Format
		if err := g.UnmarshalText(d); err != nil || g != f {
			t.Errorf("%s: got %v %v", d, g, err)
		}
		if h, ok := FromSuffix(f.Suffix()); !ok || h != f {
			t.Errorf("suffix %s: got %v", f.Suffix(), h)
		}
	}
	if _, err := ParseFormat("yaml"); !errors.Is(err, ErrBadFormat) {
		t.Errorf("expected ErrBadFormat, got %v", err)
	}
	if JSONFormat.Kind() != Text || BSONFormat.Kind() != Binary {
		t.Errorf("bad kinds")
	}
}
