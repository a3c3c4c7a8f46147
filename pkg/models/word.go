package models

// Word is a single vocabulary pair with its mastery counters.
// Foreign is the identity of the word inside a pool.
type Word struct {
	Foreign        string `json:"foreign" db:"foreign_word"`
	English        string `json:"english" db:"english_word"`
	CountSeen      int    `json:"count_seen" db:"count_seen"`
	CountCorrect   int    `json:"count_correct" db:"count_correct"`
	CountIncorrect int    `json:"count_incorrect" db:"count_incorrect"`
	IsKnown        bool   `json:"is_known" db:"is_known"`
}

// Pool is an insertion-ordered arena of words keyed by their foreign text.
// The order defines the scan order used to refill a study window.
type Pool struct {
	order []string
	words map[string]*Word
}

// NewPool creates an empty pool
func NewPool() *Pool {
	return &Pool{words: make(map[string]*Word)}
}

// PoolOf builds a pool from words in order
func PoolOf(words ...Word) *Pool {
	p := NewPool()
	for _, w := range words {
		p.Put(w)
	}
	return p
}

// Put stores a word. An existing entry with the same foreign text is
// replaced in place and keeps its original position.
func (p *Pool) Put(w Word) {
	if existing, ok := p.words[w.Foreign]; ok {
		*existing = w
		return
	}
	stored := w
	p.words[w.Foreign] = &stored
	p.order = append(p.order, w.Foreign)
}

// Get returns the arena entry for a foreign key
func (p *Pool) Get(foreign string) (*Word, bool) {
	w, ok := p.words[foreign]
	return w, ok
}

// Has reports whether the pool contains the key
func (p *Pool) Has(foreign string) bool {
	_, ok := p.words[foreign]
	return ok
}

// Len returns the number of words in the pool
func (p *Pool) Len() int {
	return len(p.order)
}

// KeyAt returns the foreign key at a scan position
func (p *Pool) KeyAt(i int) string {
	return p.order[i]
}

// Keys returns a copy of the scan order
func (p *Pool) Keys() []string {
	keys := make([]string, len(p.order))
	copy(keys, p.order)
	return keys
}

// Words returns copies of every word in scan order
func (p *Pool) Words() []Word {
	out := make([]Word, 0, len(p.order))
	for _, k := range p.order {
		out = append(out, *p.words[k])
	}
	return out
}
