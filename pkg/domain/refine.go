package domain

// RefineQuantity truncates qty down to the nearest stepSize multiple,
// rounding toward zero. A nil or zero stepSize leaves qty unchanged.
func RefineQuantity(qty, stepSize Decimal) Decimal {
	return refineToStep(qty, stepSize)
}

// RefinePrice truncates price down to the nearest tickSize multiple,
// rounding toward zero. A nil or zero tickSize leaves price unchanged.
func RefinePrice(price, tickSize Decimal) Decimal {
	return refineToStep(price, tickSize)
}

func refineToStep(value, step Decimal) Decimal {
	if value == nil || step == nil || IsZero(step) {
		return value
	}
	steps := Div(value, step)
	wholeSteps := Trunc(steps, 0)
	return Mul(wholeSteps, step)
}
