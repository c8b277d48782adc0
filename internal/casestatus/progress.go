package casestatus

// Step is one milestone of a typical adjustment-of-status case.
type Step struct {
	Status  string `json:"status"`
	Label   string `json:"label"`
	Done    bool   `json:"done"`
	Current bool   `json:"current"`
}

var milestones = []struct{ status, label string }{
	{"Case Was Received", "Case Received"},
	{"Biometrics Appointment Was Scheduled", "Biometrics Scheduled"},
	{"Employment Authorization Document Was Approved", "Work Authorization Approved"},
	{"Interview Was Scheduled", "Interview Scheduled"},
	{"Case Was Approved", "Case Approved"},
	{"New Card Is Being Produced", "Card Being Produced"},
	{"Card Was Delivered", "Card Delivered"},
}

// Progress lays status out against the milestone track. Every milestone up to
// and including the current one is done. A status that is not on the track
// leaves every step pending and ok is false.
func Progress(status string) (steps []Step, ok bool) {
	current := -1
	for i, m := range milestones {
		if m.status == status {
			current = i
			break
		}
	}
	steps = make([]Step, len(milestones))
	for i, m := range milestones {
		steps[i] = Step{
			Status:  m.status,
			Label:   m.label,
			Done:    current >= 0 && i <= current,
			Current: i == current,
		}
	}
	return steps, current >= 0
}
