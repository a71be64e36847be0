package kernel

import "github.com/aurora-os/guestcore/errno"

// SigActionAt returns a pointer to the table entry for signum, validating
// signum is in [1,64) per spec.md rt_sigaction contract.
func (s *State) SigActionAt(signum int) (*SigAction, errno.Errno) {
	if signum < 1 || signum >= MaxSignals {
		return nil, errno.EINVAL
	}
	return &s.sigact[signum], errno.OK
}
