package model

// Gap is a maximal run of consecutive missing chunk indices, both ends inclusive.
type Gap struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
	Size  int `json:"size" yaml:"size"`
}

func NewGap(start, end int) Gap {
	return Gap{
		Start: start,
		End:   end,
		Size:  end - start + 1,
	}
}

// Indices expands the gap into the list of indices it covers.
func (g Gap) Indices() []int {
	indices := make([]int, 0, g.Size)
	for i := g.Start; i <= g.End; i++ {
		indices = append(indices, i)
	}

	return indices
}
