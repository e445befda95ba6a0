package gomap

// Option controls the mapping between Go values and documents. The same
// options must be used to restore what was stored.
type Option func(*opts)

type opts struct {
	share bool
	tag   string
}

// SharePointers stores every pointer as a shared reference, so that an
// object reached through several pointers is written once and restored
// as one object. Without it only fields tagged "shared" are.
func SharePointers() Option { return func(o *opts) { o.share = true } }

// TagName sets the struct tag key read for field options. The default is
// "odoc".
func TagName(name string) Option { return func(o *opts) { o.tag = name } }

func makeOpts(options []Option) *opts {
	o := &opts{tag: "odoc"}
	for _, f := range options {
		f(o)
	}
	return o
}
