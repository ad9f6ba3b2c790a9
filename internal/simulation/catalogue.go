// Package simulation provides the pseudo-random destinations and delivery
// comments used while deliveries are simulated.
package simulation

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Place struct {
	Name      string  `toml:"name"`
	Latitude  float64 `toml:"lat"`
	Longitude float64 `toml:"lng"`
}

type Catalogue struct {
	Destinations []Place  `toml:"destinations"`
	Completions  []string `toml:"completions"`
}

func DefaultCatalogue() Catalogue {
	return Catalogue{
		Destinations: []Place{
			{Name: "Centro de Acopio Norte", Latitude: -33.3923, Longitude: -70.6482},
			{Name: "Bodega Comunitaria Sur", Latitude: -33.5701, Longitude: -70.6236},
			{Name: "Comedor Solidario Centro", Latitude: -33.4489, Longitude: -70.6693},
			{Name: "Junta de Vecinos Poniente", Latitude: -33.4652, Longitude: -70.7421},
			{Name: "Albergue Oriente", Latitude: -33.4258, Longitude: -70.5783},
		},
		Completions: []string{
			"Entrega recibida conforme por la organizacion.",
			"Donacion entregada y almacenada en frio.",
			"Entrega completada sin novedades.",
			"Recepcion confirmada por el responsable de turno.",
		},
	}
}

// LoadCatalogue reads a TOML catalogue. Sections missing from the file keep
// the built-in values.
func LoadCatalogue(path string) (Catalogue, error) {
	cat := DefaultCatalogue()

	var raw Catalogue
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Catalogue{}, fmt.Errorf("load simulation catalogue: %w", err)
	}

	if meta.IsDefined("destinations") {
		cat.Destinations = raw.Destinations
	}
	if meta.IsDefined("completions") {
		cat.Completions = raw.Completions
	}

	if err := cat.Validate(); err != nil {
		return Catalogue{}, fmt.Errorf("load simulation catalogue: %w", err)
	}
	return cat, nil
}

func (c Catalogue) Validate() error {
	if len(c.Destinations) == 0 {
		return fmt.Errorf("at least one destination is required")
	}
	for i, d := range c.Destinations {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("destination %d has no name", i)
		}
	}
	if len(c.Completions) == 0 {
		return fmt.Errorf("at least one completion message is required")
	}
	return nil
}
