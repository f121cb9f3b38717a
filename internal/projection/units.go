package projection

// MetersPerMile is the statute mile used by the radius and spacing inputs.
const MetersPerMile = 1609.34

// MilesToMeters converts statute miles to metres.
func MilesToMeters(mi float64) float64 { return mi * MetersPerMile }

// MetersToMiles converts metres to statute miles.
func MetersToMiles(m float64) float64 { return m / MetersPerMile }

// KilometersToMiles converts kilometres to statute miles.
func KilometersToMiles(km float64) float64 { return km * 1000 / MetersPerMile }
