package casestatus

// DefaultStatuses are the labels the mock resolver draws from: the milestone
// track, in order.
var DefaultStatuses = milestoneStatuses()

// KnownStatuses are the status labels accepted as a debug override. It is a
// superset of the milestone track.
var KnownStatuses = []string{
	"Case Was Received",
	"Biometrics Appointment Was Scheduled",
	"Employment Authorization Document Was Approved",
	"Request for Additional Evidence Was Sent",
	"Case Is Ready to Be Scheduled for An Interview",
	"Interview Was Scheduled",
	"Case Was Approved",
	"New Card Is Being Produced",
	"Card Was Delivered",
	"Case Was Denied",
}

// MockStatus picks statuses[len(receipt) % len(statuses)]. The same receipt
// always yields the same label for a given list.
func MockStatus(receipt string, statuses []string) string {
	if len(statuses) == 0 {
		statuses = DefaultStatuses
	}
	return statuses[len(receipt)%len(statuses)]
}

func milestoneStatuses() []string {
	out := make([]string, len(milestones))
	for i, m := range milestones {
		out[i] = m.status
	}
	return out
}
