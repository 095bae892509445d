package network

import (
	"errors"
	"fmt"
	"math"
)

// Investment lets the optimiser choose a capacity instead of fixing it.
type Investment struct {
	Minimum          float64
	Maximum          float64
	OverallMinimum   *float64
	OverallMaximum   *float64
	EPCosts          float64
	Existing         float64
	NonConvex        bool
	Offset           float64
	Lifetime         *int
	Age              int
	InterestRate     float64
	FixedCosts       float64
	CustomAttributes map[string]interface{}
}

// NewInvestment builds an Investment from keyword arguments. Maximum
// defaults to +Inf.
func NewInvestment(kw Kwargs) (*Investment, error) {
	r := ReadKwargs("Investment", kw)
	inv := &Investment{Maximum: math.Inf(1)}
	if v := r.Float("minimum"); v != nil {
		inv.Minimum = *v
	}
	if v := r.Float("maximum"); v != nil {
		inv.Maximum = *v
	}
	inv.OverallMinimum = r.Float("overall_minimum")
	inv.OverallMaximum = r.Float("overall_maximum")
	if v := r.Float("ep_costs"); v != nil {
		inv.EPCosts = *v
	}
	if v := r.Float("existing"); v != nil {
		inv.Existing = *v
	}
	if v := r.Bool("nonconvex"); v != nil {
		inv.NonConvex = *v
	}
	if v := r.Float("offset"); v != nil {
		inv.Offset = *v
	}
	inv.Lifetime = r.Int("lifetime")
	if v := r.Int("age"); v != nil {
		inv.Age = *v
	}
	if v := r.Float("interest_rate"); v != nil {
		inv.InterestRate = *v
	}
	if v := r.Float("fixed_costs"); v != nil {
		inv.FixedCosts = *v
	}
	inv.CustomAttributes = r.Attributes("custom_attributes")
	if err := r.Done(); err != nil {
		return nil, err
	}

	if inv.Minimum < 0 {
		return nil, fmt.Errorf("Investment: minimum must be >= 0, got %v", inv.Minimum)
	}
	if inv.Maximum < inv.Minimum {
		return nil, fmt.Errorf("Investment: maximum %v below minimum %v", inv.Maximum, inv.Minimum)
	}
	if inv.NonConvex && math.IsInf(inv.Maximum, 1) {
		return nil, errors.New("Investment: nonconvex investment needs a finite maximum")
	}
	return inv, nil
}

// NonConvex switches a flow to discrete on/off operation.
type NonConvex struct {
	StartupCosts          *Sequence
	ShutdownCosts         *Sequence
	ActivityCosts         *Sequence
	InactivityCosts       *Sequence
	MinimumUptime         int
	MinimumDowntime       int
	MaximumStartups       *int
	MaximumShutdowns      *int
	InitialStatus         int
	PositiveGradientLimit *Sequence
	NegativeGradientLimit *Sequence
}

// NewNonConvex builds a NonConvex from keyword arguments.
func NewNonConvex(kw Kwargs) (*NonConvex, error) {
	r := ReadKwargs("NonConvex", kw)
	nc := &NonConvex{}
	nc.StartupCosts = r.Sequence("startup_costs")
	nc.ShutdownCosts = r.Sequence("shutdown_costs")
	nc.ActivityCosts = r.Sequence("activity_costs")
	nc.InactivityCosts = r.Sequence("inactivity_costs")
	if v := r.Int("minimum_uptime"); v != nil {
		nc.MinimumUptime = *v
	}
	if v := r.Int("minimum_downtime"); v != nil {
		nc.MinimumDowntime = *v
	}
	nc.MaximumStartups = r.Int("maximum_startups")
	nc.MaximumShutdowns = r.Int("maximum_shutdowns")
	if v := r.Int("initial_status"); v != nil {
		nc.InitialStatus = *v
	}
	nc.PositiveGradientLimit = r.Sequence("positive_gradient_limit")
	nc.NegativeGradientLimit = r.Sequence("negative_gradient_limit")
	if err := r.Done(); err != nil {
		return nil, err
	}

	if nc.InitialStatus != 0 && nc.InitialStatus != 1 {
		return nil, fmt.Errorf("NonConvex: initial_status must be 0 or 1, got %d", nc.InitialStatus)
	}
	if nc.MinimumUptime < 0 || nc.MinimumDowntime < 0 {
		return nil, errors.New("NonConvex: minimum up/down time must be >= 0")
	}
	return nc, nil
}

// NeedsStartup reports whether the formulation needs startup variables.
func (nc *NonConvex) NeedsStartup() bool {
	return nc.StartupCosts != nil || nc.MinimumUptime > 0 || nc.MaximumStartups != nil
}

// NeedsShutdown reports whether the formulation needs shutdown variables.
func (nc *NonConvex) NeedsShutdown() bool {
	return nc.ShutdownCosts != nil || nc.MinimumDowntime > 0 || nc.MaximumShutdowns != nil
}
