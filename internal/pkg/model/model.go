package model

import (
	"fmt"

	"github.com/gosimple/slug"
)

// Device identifies one physical Petlibro unit.
type Device struct {
	ID           string
	Name         string
	Model        string
	SerialNumber string
}

// Identifier is the slug every publisher files this device's sensors
// under, both in discovery topics and in the history store.
func (d Device) Identifier() string {
	return slug.Make(fmt.Sprintf("%s_%s", d.Model, d.SerialNumber))
}

type DeviceStatus struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
}
