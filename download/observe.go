package download

// Progress receives byte-level progress from Transfer. It is a side channel
// only and never affects control flow. Implementations must be safe for
// concurrent use.
type Progress interface {
	// Start is called once per attempt after the response has been
	// validated. offset is the number of bytes already on disk.
	Start(job Job, offset, total int64)
	// Add is called after each chunk is written.
	Add(job Job, n int64)
	// Done ends the attempt started by Start.
	Done(job Job, err error)
}

// Observer receives job lifecycle events from the retry loop and the store.
// Implementations must be safe for concurrent use.
type Observer interface {
	AttemptFailed(job Job, attempt int, err error)
	SessionReset(job Job)
	JobFinished(o Outcome)
}

type nopProgress struct{}

func (nopProgress) Start(Job, int64, int64) {}
func (nopProgress) Add(Job, int64)          {}
func (nopProgress) Done(Job, error)         {}

type nopObserver struct{}

func (nopObserver) AttemptFailed(Job, int, error) {}
func (nopObserver) SessionReset(Job)              {}
func (nopObserver) JobFinished(Outcome)           {}

type multiProgress []Progress

// MultiProgress fans progress out to every non-nil sink.
func MultiProgress(ps ...Progress) Progress {
	var m multiProgress
	for _, p := range ps {
		if p != nil {
			m = append(m, p)
		}
	}
	return m
}

func (m multiProgress) Start(job Job, offset, total int64) {
	for _, p := range m {
		p.Start(job, offset, total)
	}
}

func (m multiProgress) Add(job Job, n int64) {
	for _, p := range m {
		p.Add(job, n)
	}
}

func (m multiProgress) Done(job Job, err error) {
	for _, p := range m {
		p.Done(job, err)
	}
}

type multiObserver []Observer

// MultiObserver fans events out to every non-nil observer.
func MultiObserver(os ...Observer) Observer {
	var m multiObserver
	for _, o := range os {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multiObserver) AttemptFailed(job Job, attempt int, err error) {
	for _, o := range m {
		o.AttemptFailed(job, attempt, err)
	}
}

func (m multiObserver) SessionReset(job Job) {
	for _, o := range m {
		o.SessionReset(job)
	}
}

func (m multiObserver) JobFinished(out Outcome) {
	for _, o := range m {
		o.JobFinished(out)
	}
}
