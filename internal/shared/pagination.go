package shared

// Pagination bounds list queries.
type Pagination struct {
	Limit  int
	Offset int
}

// Normalize clamps the limit into [1, 200] with a default of 50.
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 200 {
		p.Limit = 200
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
