package estimator

const (
	DefaultServiceTimePerCustomer = 30
	DefaultBaseWaitTime           = 15
)

// Estimator turns a place in the waiting line into minutes.
type Estimator struct {
	ServiceTimePerCustomer int
	BaseWaitTime           int
}

func New(serviceTimePerCustomer, baseWaitTime int) Estimator {
	if serviceTimePerCustomer <= 0 {
		serviceTimePerCustomer = DefaultServiceTimePerCustomer
	}
	if baseWaitTime < 0 {
		baseWaitTime = DefaultBaseWaitTime
	}
	return Estimator{ServiceTimePerCustomer: serviceTimePerCustomer, BaseWaitTime: baseWaitTime}
}

func Default() Estimator {
	return New(DefaultServiceTimePerCustomer, DefaultBaseWaitTime)
}

func (e Estimator) ForPosition(position int) int {
	if position <= 0 {
		return 0
	}
	return position * e.ServiceTimePerCustomer
}

// ForNextArrival is the wait quoted to a customer who has not checked in yet.
// An empty line quotes the base wait.
func (e Estimator) ForNextArrival(waitingCount int) int {
	if waitingCount <= 0 {
		return e.BaseWaitTime
	}
	return e.ForPosition(waitingCount)
}
