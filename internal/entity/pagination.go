package entity

type PaginationInput struct {
	Page    int
	PerPage int
}

func NewPaginationInput(page int, perPage int) *PaginationInput {
	return &PaginationInput{
		Page:    page,
		PerPage: perPage,
	}
}

func (p *PaginationInput) Offset() int {
	return (p.Page - 1) * p.PerPage
}

func (p *PaginationInput) Limit() int {
	return p.PerPage
}
