package vectorizer

// Matrix is a compressed sparse row matrix. Row i holds the column indices
// Indices[IndPtr[i]:IndPtr[i+1]] (ascending) with values from Data.
type Matrix struct {
	NumRows int
	NumCols int
	IndPtr  []int
	Indices []int
	Data    []float64
}

func newMatrix(cols, rowsHint int) *Matrix {
	return &Matrix{
		NumCols: cols,
		IndPtr:  make([]int, 1, rowsHint+1),
	}
}

func (m *Matrix) appendRow(indices []int, data []float64) {
	m.Indices = append(m.Indices, indices...)
	m.Data = append(m.Data, data...)
	m.IndPtr = append(m.IndPtr, len(m.Indices))
	m.NumRows++
}

// Row returns views into the matrix storage for row i.
func (m *Matrix) Row(i int) ([]int, []float64) {
	start, end := m.IndPtr[i], m.IndPtr[i+1]
	return m.Indices[start:end], m.Data[start:end]
}

func (m *Matrix) NonZeros() int {
	return len(m.Data)
}
