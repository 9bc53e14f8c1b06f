package products

type ProductForm struct {
	Name        string `json:"name"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
}

func (f ProductForm) toProduct() Product {
	return Product{
		Name:        f.Name,
		Reference:   f.Reference,
		Description: f.Description,
	}
}
