//go:build !linux

package cpu

// systemAffinity is the stub for platforms where CPU pinning is not available.
type systemAffinity struct{}

func (systemAffinity) Current() (CPUSet, error) {
	return CPUSet{}, ErrUnsupported
}

func (systemAffinity) SetCurrentThread(CPUSet) error {
	return ErrUnsupported
}
