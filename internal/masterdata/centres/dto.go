package centres

type CentreForm struct {
	Name          string `json:"name"`
	Reference     string `json:"reference"`
	Address       string `json:"address"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
}

func (f CentreForm) toCentre() Centre {
	return Centre{
		Name:          f.Name,
		Reference:     f.Reference,
		Address:       f.Address,
		ContactPerson: f.ContactPerson,
		Phone:         f.Phone,
	}
}
