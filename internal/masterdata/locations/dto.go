package locations

type LocationForm struct {
	Name          string `json:"name"`
	Reference     string `json:"reference"`
	Address       string `json:"address"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
}

func (f LocationForm) toLocation() Location {
	return Location{
		Name:          f.Name,
		Reference:     f.Reference,
		Address:       f.Address,
		ContactPerson: f.ContactPerson,
		Phone:         f.Phone,
	}
}
