package locations

import (
	"fmt"
	"strings"

	"github.com/alnoor-medical/stocktrack/internal/masterdata/shared"
)

func (s *Service) validate(l Location) error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	if l.Reference == "" {
		return fmt.Errorf("%w: reference", shared.ErrRequiredField)
	}
	return nil
}
