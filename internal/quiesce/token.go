package quiesce

// Token is held by a Reader while it walks a shared structure. Writers that
// Incremented the Domain after the Token was acquired wait for it to be
// Released.
type Token struct {
	r   *Reader
	gen uint64
}

// Release ends the read section and must be called exactly once.
func (t Token) Release() { t.r.reading.Store(false) }

// Gen reports the generation the reader was tagged with.
func (t Token) Gen() uint64 { return t.gen }
