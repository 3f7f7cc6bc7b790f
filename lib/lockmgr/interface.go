package lockmgr

// IPermit is a non-blocking, exclusive permit.
// At most one holder exists at any time, callers that fail to acquire it must not wait.
type IPermit interface {
	// TryAcquire acquires the permit if it is free.
	// Return a boolean indicating whether the permit was acquired.
	TryAcquire() (ok bool)

	// Release gives the permit back.
	// Return a boolean indicating whether the permit was held before.
	Release() (ok bool)

	// Held reports whether the permit is currently held by anyone.
	Held() (held bool)
}

// IPermitManager hands out one permit per name.
// Asking twice for the same name returns the same permit.
type IPermitManager interface {
	// Permit returns the permit for the given name, creating it on first use.
	Permit(name string) IPermit

	// Names returns the names of all permits created so far.
	Names() []string
}
