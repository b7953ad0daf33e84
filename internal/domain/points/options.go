package points

// Option configures a Distributor.
type Option func(*Distributor)

// WithLinearShare sets the share of the first place value spread linearly
// over the field. The remainder feeds the dynamic curve.
func WithLinearShare(share float64) Option {
	return func(d *Distributor) {
		d.linearShare = share
	}
}

// WithDynamicCurve sets the shape of the dynamic component: the exponent
// applied to the relative position, the outer power, and how the curve's
// reach scales with the field size (share of N, capped).
func WithDynamicCurve(exponent, power, fieldShare, fieldCap float64) Option {
	return func(d *Distributor) {
		d.dynamicExponent = exponent
		d.dynamicPower = power
		d.fieldShare = fieldShare
		d.fieldCap = fieldCap
	}
}
