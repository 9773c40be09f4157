package sparse

// Entry is an entry in a compressed sparse row or column.
type Entry struct {
	// Index is the minor-axis index of the entry: a column index in a CSR
	// matrix, a row index in a CSC matrix.
	Index int

	// Value is the entry value.  For sparse use, it should be nonzero.
	Value float64
}

// CooEntry is a sparse matrix coordinate-format ("Coo") entry.
// Used as an input to a sparse matrix builder.
type CooEntry struct {
	Row, Column int
	Value       float64
}

// EntriesByIndex sorts Entry objects by index.
type EntriesByIndex []Entry

func (a EntriesByIndex) Len() int           { return len(a) }
func (a EntriesByIndex) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a EntriesByIndex) Less(i, j int) bool { return a[i].Index < a[j].Index }
