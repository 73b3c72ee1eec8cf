package emu

// InterruptController arbitrates the pending machine interrupts. It never
// touches CsrFile internals directly; all state it needs is exposed
// through accessor methods.
type InterruptController struct {
	csr *CsrFile
}

// NewInterruptController creates a controller bound to a CSR file.
func NewInterruptController(csr *CsrFile) *InterruptController {
	return &InterruptController{csr: csr}
}

// Pending returns the cause of the highest-priority pending interrupt and
// whether one should be taken this cycle. Priority is fixed:
// external > timer > software. No interrupt is pending while the global
// enable is clear.
func (ic *InterruptController) Pending() (uint32, bool) {
	if !ic.csr.GlobalInterruptEnable() {
		return 0, false
	}

	mask := ic.csr.PendingMask()
	switch {
	case mask&IntExternal != 0:
		return CauseExternalInterrupt, true
	case mask&IntTimer != 0:
		return CauseTimerInterrupt, true
	case mask&IntSoftware != 0:
		return CauseSoftwareInterrupt, true
	default:
		return 0, false
	}
}
