package domain

import "errors"

// Branch is one autonomous retail location with its own local ledger
// namespace. The set of branches is closed and known at startup;
// provisioning a branch means adding it to configuration and restarting.
type Branch struct {
	Code    string
	Name    string
	Address string
	Active  bool
}

// ErrUnknownBranch rejects routing for a branch outside the configured
// registry. Falling back to another tenant's ledger is the worst failure
// mode this system has, so an unknown code never resolves.
var ErrUnknownBranch = errors.New("unknown branch")
