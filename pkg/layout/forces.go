package layout

// Forces is the numeric configuration handed to the force-layout engine.
type Forces struct {
	LinkDistance   float64 `json:"linkDistance" koanf:"link_distance"`
	LinkStrength   float64 `json:"linkStrength" koanf:"link_strength"`
	ChargeStrength float64 `json:"chargeStrength" koanf:"charge_strength"`
	NodeRadius     float64 `json:"nodeRadius" koanf:"node_radius"` // Pixels per unit of group radius
	Strength       Bounds  `json:"strength" koanf:"strength"`
}

// DefaultForces are the values the viewer was tuned with.
var DefaultForces = Forces{
	LinkDistance:   150,
	LinkStrength:   2.1,
	ChargeStrength: -700,
	NodeRadius:     20,
	Strength:       DefaultBounds,
}
