package products

import (
	"fmt"
	"strings"

	"github.com/alnoor-medical/stocktrack/internal/masterdata/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	if p.Reference == "" {
		return fmt.Errorf("%w: reference", shared.ErrRequiredField)
	}
	return nil
}
