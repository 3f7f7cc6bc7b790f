package lockmgr

import (
	"sort"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Local permit
// --------------------------------------------------------------------------

type localPermit struct {
	held atomic.Bool
}

// NewLocalPermit creates a process-local permit backed by a single atomic flag
func NewLocalPermit() IPermit {
	return &localPermit{}
}

func (p *localPermit) TryAcquire() bool {
	// compare-and-swap guarantees a single winner
	return p.held.CompareAndSwap(false, true)
}

func (p *localPermit) Release() bool {
	return p.held.CompareAndSwap(true, false)
}

func (p *localPermit) Held() bool {
	return p.held.Load()
}

// --------------------------------------------------------------------------
// Permit manager
// --------------------------------------------------------------------------

type permitMgmImpl struct {
	permits *xsync.MapOf[string, IPermit]
}

// NewPermitManager creates a manager that lazily creates one local permit per name
func NewPermitManager() IPermitManager {
	return &permitMgmImpl{
		permits: xsync.NewMapOf[string, IPermit](),
	}
}

func (pm *permitMgmImpl) Permit(name string) IPermit {
	permit, _ := pm.permits.LoadOrCompute(name, func() IPermit {
		return NewLocalPermit()
	})
	return permit
}

func (pm *permitMgmImpl) Names() []string {
	names := make([]string, 0, pm.permits.Size())
	pm.permits.Range(func(name string, _ IPermit) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}
