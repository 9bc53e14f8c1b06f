package centres

import (
	"fmt"
	"strings"

	"github.com/alnoor-medical/stocktrack/internal/masterdata/shared"
)

func (s *Service) validate(c Centre) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	if c.Reference == "" {
		return fmt.Errorf("%w: reference", shared.ErrRequiredField)
	}
	return nil
}
