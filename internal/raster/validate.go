package raster

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Validate runs pdfcpu's relaxed validation so corrupt uploads are rejected
// before any rendering happens.
func Validate(pdfPath string) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(pdfPath, conf); err != nil {
		return fmt.Errorf("validating %s: %w", pdfPath, err)
	}
	return nil
}
