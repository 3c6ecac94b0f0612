package bork

// UTXOSet tracks outputs already taken by one coin selection.
type UTXOSet struct {
	used map[string]bool
}

func NewUTXOSet() UTXOSet {
	return UTXOSet{
		used: map[string]bool{},
	}
}

func (u *UTXOSet) Add(txID string) {
	u.used[txID] = true
}

func (u *UTXOSet) AddAll(txIDs []string) {
	for _, id := range txIDs {
		u.used[id] = true
	}
}

func (u *UTXOSet) Includes(txID string) bool {
	return u.used[txID]
}

func (u *UTXOSet) Len() int {
	return len(u.used)
}
